package matcher

import "github.com/xaenox/bilim-bot/internal/models"

// DefaultCatalog returns the prepared answers and handwritten solutions shipped with the bot.
// Answers reference their solution through the same pointer held in the solution list.
func DefaultCatalog() ([]*models.PreparedAnswer, []*models.HandwrittenSolution) {
	quadratic := &models.HandwrittenSolution{
		ID:       "math-quadratic-1",
		Subject:  "Математика",
		Topic:    "Квадратные уравнения",
		Title:    "Решение квадратного уравнения через дискриминант",
		ImageSrc: "/assets/solutions/math-quadratic-1.jpg",
		Keywords: []string{"квадратное уравнение", "дискриминант", "корни уравнения"},
	}
	derivative := &models.HandwrittenSolution{
		ID:       "math-derivative-1",
		Subject:  "Математика",
		Topic:    "Производная",
		Title:    "Нахождение производной сложной функции",
		ImageSrc: "/assets/solutions/math-derivative-1.jpg",
		Keywords: []string{"производная", "сложная функция", "правило цепочки"},
	}
	newton := &models.HandwrittenSolution{
		ID:       "physics-newton-1",
		Subject:  "Физика",
		Topic:    "Законы Ньютона",
		Title:    "Задача на второй закон Ньютона",
		ImageSrc: "/assets/solutions/physics-newton-1.jpg",
		Keywords: []string{"второй закон ньютона", "сила", "ускорение"},
	}

	answers := []*models.PreparedAnswer{
		{
			ID:       "math-quadratic",
			Question: "Как решать квадратные уравнения?",
			Answer: "Чтобы решить квадратное уравнение ax² + bx + c = 0, найди дискриминант D = b² - 4ac. " +
				"Если D > 0, у уравнения два корня: x = (-b ± √D) / 2a. Если D = 0, корень один: x = -b / 2a. " +
				"Если D < 0, действительных корней нет.",
			Keywords:            []string{"квадратное уравнение", "квадратные уравнения", "дискриминант", "корни уравнения"},
			Subject:             "Математика",
			Topic:               "Квадратные уравнения",
			HandwrittenSolution: quadratic,
		},
		{
			ID:       "math-derivative",
			Question: "Что такое производная?",
			Answer: "Производная показывает, как быстро меняется функция в данной точке. " +
				"Геометрически это угловой коэффициент касательной к графику. " +
				"Основные правила: (xⁿ)' = n·xⁿ⁻¹, (sin x)' = cos x, (eˣ)' = eˣ, а для сложной функции (f(g(x)))' = f'(g(x))·g'(x).",
			Keywords:            []string{"производная", "производную", "производной", "функция", "функции", "касательная", "дифференцирование"},
			Subject:             "Математика",
			Topic:               "Производная",
			HandwrittenSolution: derivative,
		},
		{
			ID:       "math-pythagoras",
			Question: "Что такое теорема Пифагора?",
			Answer: "Теорема Пифагора: в прямоугольном треугольнике квадрат гипотенузы равен сумме квадратов катетов, c² = a² + b². " +
				"Например, если катеты равны 3 и 4, то гипотенуза равна 5.",
			Keywords: []string{"пифагор", "гипотенуза", "катет", "прямоугольный треугольник"},
			Subject:  "Геометрия",
			Topic:    "Теорема Пифагора",
		},
		{
			ID:       "physics-newton",
			Question: "Как работает второй закон Ньютона?",
			Answer: "Второй закон Ньютона: ускорение тела прямо пропорционально равнодействующей силе и обратно пропорционально массе, F = m·a. " +
				"Сначала найди все силы, действующие на тело, сложи их как векторы, а затем раздели на массу.",
			Keywords:            []string{"ньютон", "ньютона", "сила", "ускорение", "масса тела"},
			Subject:             "Физика",
			Topic:               "Законы Ньютона",
			HandwrittenSolution: newton,
		},
		{
			ID:       "chemistry-moles",
			Question: "Как найти количество вещества?",
			Answer: "Количество вещества находят по формуле n = m / M, где m — масса вещества, а M — молярная масса из таблицы Менделеева. " +
				"Для газов при нормальных условиях можно использовать n = V / 22,4 л/моль.",
			Keywords: []string{"моль", "молярная масса", "количество вещества", "менделеев"},
			Subject:  "Химия",
			Topic:    "Количество вещества",
		},
		{
			ID:       "history-kazakh-khanate",
			Question: "Когда образовалось Казахское ханство?",
			Answer: "Казахское ханство образовалось в 1465 году, когда султаны Керей и Жанибек откочевали в Западное Семиречье. " +
				"Эту дату считают началом казахской государственности.",
			Keywords: []string{"казахское ханство", "керей", "жанибек", "ханство"},
			Subject:  "История Казахстана",
			Topic:    "Казахское ханство",
		},
		{
			ID:       "biology-photosynthesis",
			Question: "Что такое фотосинтез?",
			Answer: "Фотосинтез — это процесс, при котором растения на свету из углекислого газа и воды образуют глюкозу и выделяют кислород. " +
				"Он идёт в хлоропластах благодаря хлорофиллу и состоит из световой и темновой фаз.",
			Keywords: []string{"фотосинтез", "хлорофилл", "хлоропласт", "растения"},
			Subject:  "Биология",
			Topic:    "Фотосинтез",
		},
		{
			ID:       "informatics-algorithms",
			Question: "Что такое алгоритм?",
			Answer: "Алгоритм — это конечная последовательность точных шагов, которая приводит к решению задачи. " +
				"У алгоритма есть свойства: дискретность, понятность, определённость, результативность и массовость.",
			Keywords: []string{"алгоритм", "алгоритмы", "блок-схема", "программирование"},
			Subject:  "Информатика",
			Topic:    "Алгоритмы",
		},
	}

	return answers, []*models.HandwrittenSolution{quadratic, derivative, newton}
}
