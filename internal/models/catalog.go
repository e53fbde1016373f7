package models

// PreparedAnswer is a canned question/answer pair the tutor can reply with
type PreparedAnswer struct {
	ID                  string               `json:"id"`
	Question            string               `json:"question"`
	Answer              string               `json:"answer"`
	Keywords            []string             `json:"keywords"`
	Subject             string               `json:"subject,omitempty"`
	Topic               string               `json:"topic,omitempty"`
	HandwrittenSolution *HandwrittenSolution `json:"handwritten_solution,omitempty"`
}

// HandwrittenSolution points to a scanned worked solution
type HandwrittenSolution struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	ImageSrc string   `json:"image_src"`
	Keywords []string `json:"keywords"`
}
