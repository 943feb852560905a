package ordernumber_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/ordernumber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numberPattern = regexp.MustCompile(`^DM-\d{4}-\d{6}$`)

// fakeNumbers — потокобезопасное хранилище занятых номеров
type fakeNumbers struct {
	mu    sync.Mutex
	taken map[string]bool
	calls int
}

func newFakeNumbers(taken ...string) *fakeNumbers {
	f := &fakeNumbers{taken: make(map[string]bool)}
	for _, n := range taken {
		f.taken[n] = true
	}
	return f
}

func (f *fakeNumbers) CountOrdersWithNumber(ctx context.Context, number string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.taken[number] {
		return 1, nil
	}
	return 0, nil
}

// reserve имитирует уникальный индекс: второй номер с тем же значением не вставится
func (f *fakeNumbers) reserve(number string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken[number] {
		return false
	}
	f.taken[number] = true
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
}

func sequence(values ...int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

func TestGenerate_Format(t *testing.T) {
	gen := ordernumber.New(testLogger(), ordernumber.WithClock(fixedClock), ordernumber.WithRandom(sequence(42)))

	number, err := gen.Generate(context.Background(), newFakeNumbers())
	require.NoError(t, err)
	assert.Equal(t, "DM-2026-000042", number)
	assert.Regexp(t, numberPattern, number)
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	checker := newFakeNumbers("DM-2026-000001", "DM-2026-000002")
	collisions := 0
	gen := ordernumber.New(testLogger(),
		ordernumber.WithClock(fixedClock),
		ordernumber.WithRandom(sequence(1, 2, 3)),
		ordernumber.WithCollisionObserver(func() { collisions++ }),
	)

	number, err := gen.Generate(context.Background(), checker)
	require.NoError(t, err)
	assert.Equal(t, "DM-2026-000003", number)
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, 2, collisions)
}

func TestGenerate_Exhausted(t *testing.T) {
	// Все кандидаты заняты: генератор должен остановиться ровно после 10 попыток
	checker := newFakeNumbers("DM-2026-000007")
	gen := ordernumber.New(testLogger(), ordernumber.WithClock(fixedClock), ordernumber.WithRandom(sequence(7)))

	number, err := gen.Generate(context.Background(), checker)
	assert.Empty(t, number)
	assert.True(t, errors.Is(err, models.ErrGenerationExhausted))
	assert.Equal(t, ordernumber.DefaultMaxAttempts, checker.calls)
}

func TestGenerate_CheckerError(t *testing.T) {
	gen := ordernumber.New(testLogger())
	dbErr := errors.New("connection reset")

	_, err := gen.Generate(context.Background(), ordernumber.CheckerFunc(func(ctx context.Context, number string) (int, error) {
		return 0, dbErr
	}))
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, errors.Is(err, models.ErrGenerationExhausted))
}

func TestGenerate_CancelledContext(t *testing.T) {
	gen := ordernumber.New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, newFakeNumbers())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_ConcurrentUnique(t *testing.T) {
	// Узкое пространство суффиксов провоцирует коллизии; reserve играет роль уникального индекса
	checker := newFakeNumbers()
	var mu sync.Mutex
	counter := int64(0)
	random := func() (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return counter % 64, nil
	}
	gen := ordernumber.New(testLogger(),
		ordernumber.WithClock(fixedClock),
		ordernumber.WithRandom(random),
		ordernumber.WithMaxAttempts(200),
	)

	const workers = 40
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				number, err := gen.Generate(context.Background(), checker)
				if err != nil {
					return
				}
				if checker.reserve(number) {
					results <- number
					return
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for n := range results {
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
		assert.Regexp(t, numberPattern, n)
	}
	assert.Len(t, seen, workers)
}
