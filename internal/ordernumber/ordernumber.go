// Package ordernumber выдает человекочитаемые номера заказов вида DM-2026-004217.
package ordernumber

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/linemk/dental-mall/internal/domain/models"
)

const (
	DefaultPrefix      = "DM"
	DefaultMaxAttempts = 10

	suffixSpace = 1_000_000
)

// Checker проверяет, занят ли номер. Реализуется хранилищем заказов
type Checker interface {
	CountOrdersWithNumber(ctx context.Context, number string) (int, error)
}

// CheckerFunc адаптирует обычную функцию к Checker
type CheckerFunc func(ctx context.Context, number string) (int, error)

func (f CheckerFunc) CountOrdersWithNumber(ctx context.Context, number string) (int, error) {
	return f(ctx, number)
}

// CollisionObserver получает уведомление о каждом занятом кандидате
type CollisionObserver func()

// Generator подбирает свободный номер за ограниченное число попыток.
// Проверка не атомарна со вставкой: окончательная гарантия — уникальный индекс в БД
type Generator struct {
	log         *slog.Logger
	prefix      string
	maxAttempts int
	now         func() time.Time
	random      func() (int64, error)
	onCollision CollisionObserver
}

type Option func(*Generator)

func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithRandom подменяет источник случайного суффикса, нужен в тестах
func WithRandom(random func() (int64, error)) Option {
	return func(g *Generator) {
		if random != nil {
			g.random = random
		}
	}
}

func WithCollisionObserver(fn CollisionObserver) Option {
	return func(g *Generator) {
		g.onCollision = fn
	}
}

func New(log *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		log:         log,
		prefix:      DefaultPrefix,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		random:      cryptoSuffix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Candidate собирает номер из префикса, года и суффикса
func (g *Generator) Candidate(suffix int64) string {
	return Format(g.prefix, g.now().Year(), suffix)
}

func Format(prefix string, year int, suffix int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, suffix%suffixSpace)
}

// Generate возвращает свободный номер или models.ErrGenerationExhausted после maxAttempts попыток
func (g *Generator) Generate(ctx context.Context, checker Checker) (string, error) {
	const op = "ordernumber.Generator.Generate"
	logger := g.log.With(slog.String("op", op))

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		suffix, err := g.random()
		if err != nil {
			return "", fmt.Errorf("%s: failed to draw suffix: %w", op, err)
		}
		candidate := g.Candidate(suffix)

		count, err := checker.CountOrdersWithNumber(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check uniqueness: %w", op, err)
		}
		if count == 0 {
			return candidate, nil
		}

		if g.onCollision != nil {
			g.onCollision()
		}
		logger.Warn("order number collision", slog.String("candidate", candidate), slog.Int("attempt", attempt))
	}

	logger.Error("order number attempts exhausted", slog.Int("attempts", g.maxAttempts))
	return "", fmt.Errorf("%s: %w after %d attempts", op, models.ErrGenerationExhausted, g.maxAttempts)
}

func cryptoSuffix() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(suffixSpace))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}
