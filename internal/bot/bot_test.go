package bot

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/bilim-bot/internal/matcher"
	"github.com/xaenox/bilim-bot/internal/models"
	"github.com/xaenox/bilim-bot/internal/session"
	"github.com/xaenox/bilim-bot/internal/storage"
	"go.uber.org/zap"
)

type countingStorage struct {
	storage.Storage
	lists atomic.Int32
}

func (s *countingStorage) ListSessions(ctx context.Context, ownerID int64) ([]models.ChatSession, error) {
	s.lists.Add(1)
	// keep the load open long enough for callers to pile up
	time.Sleep(10 * time.Millisecond)
	return s.Storage.ListSessions(ctx, ownerID)
}

// holdScheduler never runs what it is given.
type holdScheduler struct{}

func (holdScheduler) Schedule(func()) {}

func newTestBot(st storage.Storage) *Bot {
	answers, solutions := matcher.DefaultCatalog()
	b := &Bot{
		storage: st,
		matcher: matcher.New(answers, solutions, nil, zap.NewNop()),
		stores:  cache.New(time.Hour, time.Hour),
		logger:  zap.NewNop(),
	}
	b.stores.OnEvicted(b.onStoreEvicted)
	return b
}

func TestStoreForLoadsOncePerUser(t *testing.T) {
	st := &countingStorage{Storage: storage.NewMemoryStorage()}
	b := newTestBot(st)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		stores []*session.Store
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := b.storeFor(context.Background(), 42, 42)
			assert.NoError(t, err)
			mu.Lock()
			stores = append(stores, s)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), st.lists.Load())
	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
}

func TestStoreForResumesMostRecentSession(t *testing.T) {
	mem := storage.NewMemoryStorage()
	now := time.Now()
	ctx := context.Background()
	require.NoError(t, mem.SaveSession(ctx, 7, &models.ChatSession{ID: "old", Category: models.CategoryTests, UpdatedAt: now.Add(-time.Hour)}))
	require.NoError(t, mem.SaveSession(ctx, 7, &models.ChatSession{ID: "new", Category: models.CategoryExams, UpdatedAt: now}))
	require.NoError(t, mem.SaveSession(ctx, 8, &models.ChatSession{ID: "other", Category: models.CategoryExams, UpdatedAt: now}))

	b := newTestBot(mem)
	st, err := b.storeFor(ctx, 7, 7)
	require.NoError(t, err)

	assert.Len(t, st.GetSessions(""), 2)
	current, ok := st.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, "new", current.ID)
}

func TestEvictedStoreWithPendingRepliesIsKept(t *testing.T) {
	b := newTestBot(storage.NewMemoryStorage())
	key := strconv.Itoa(5)

	busy := session.New(b.matcher, session.Options{Scheduler: holdScheduler{}})
	busy.CreateSession(context.Background(), session.CreateParams{Title: "Test", Category: models.CategoryHomework})
	require.Equal(t, 1, busy.Pending())

	b.stores.Set(key, busy, cache.DefaultExpiration)
	b.stores.Delete(key)

	got, found := b.stores.Get(key)
	require.True(t, found)
	assert.Same(t, busy, got)
}

func TestEvictedIdleStoreIsDropped(t *testing.T) {
	b := newTestBot(storage.NewMemoryStorage())
	key := strconv.Itoa(6)

	idle := session.New(b.matcher, session.Options{})
	b.stores.Set(key, idle, cache.DefaultExpiration)
	b.stores.Delete(key)

	_, found := b.stores.Get(key)
	assert.False(t, found)
}

func TestSchedulerForGivesEachUserALane(t *testing.T) {
	b := newTestBot(storage.NewMemoryStorage())
	assert.IsType(t, session.ImmediateScheduler{}, b.schedulerFor())

	b.delays = session.NewDelayScheduler(time.Millisecond)
	first, second := b.schedulerFor(), b.schedulerFor()
	assert.NotSame(t, first, second)

	var ran atomic.Int32
	first.Schedule(func() { ran.Add(1) })
	second.Schedule(func() { ran.Add(1) })
	b.delays.Wait()
	assert.Equal(t, int32(2), ran.Load())
}

func TestDrainWaitsForHandlersAndReplies(t *testing.T) {
	b := newTestBot(storage.NewMemoryStorage())
	b.delays = session.NewDelayScheduler(20 * time.Millisecond)

	var delivered atomic.Int32
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		// a handler still running when polling stops
		time.Sleep(10 * time.Millisecond)
		b.schedulerFor().Schedule(func() { delivered.Add(1) })
	}()

	b.drain()
	assert.Equal(t, int32(1), delivered.Load())
}
