// Package idempotency защищает оформление заказа от повторной отправки одного и того же запроса.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type ReservationState int

const (
	// ReservationStateNew — ключ свободен, запрос можно выполнять
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted — ответ уже сохранен и отдается повторно
	ReservationStateCompleted
	// ReservationStatePending — запрос с этим ключом выполняется прямо сейчас
	ReservationStatePending
)

type Reservation struct {
	State  ReservationState
	Record Record
}

type Record struct {
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"response_status,omitempty"`
	ResponseHeaders map[string][]string `json:"response_headers,omitempty"`
	ResponseBody    []byte              `json:"response_body,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// ErrFingerprintMismatch — ключ повторно использован для другого запроса
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request")

const keyPrefix = "dentmall:idempotency:"

type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Reservation, error) {
	pending := Record{Fingerprint: fingerprint, Status: StatusPending, CreatedAt: s.now().UTC()}
	data, err := json.Marshal(pending)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: marshal: %w", err)
	}

	// запись могла истечь между SETNX и GET, поэтому вторая попытка
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, keyPrefix+key, data, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if ok {
			return Reservation{State: ReservationStateNew, Record: pending}, nil
		}

		raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: load: %w", err)
		}

		var existing Record
		if err := json.Unmarshal(raw, &existing); err != nil {
			return Reservation{}, fmt.Errorf("idempotency: decode: %w", err)
		}
		if existing.Fingerprint != fingerprint {
			return Reservation{}, ErrFingerprintMismatch
		}
		if existing.Status == StatusCompleted {
			return Reservation{State: ReservationStateCompleted, Record: existing}, nil
		}
		return Reservation{State: ReservationStatePending, Record: existing}, nil
	}
	return Reservation{State: ReservationStatePending}, nil
}

func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, ttl time.Duration) error {
	rec := Record{
		Fingerprint:     fingerprint,
		Status:          StatusCompleted,
		ResponseStatus:  resp.Status,
		ResponseHeaders: resp.Headers,
		ResponseBody:    resp.Body,
		CreatedAt:       s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("idempotency: marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}
