package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when no session exists for a phone number.
var ErrNotFound = errors.New("session: not found")

// Backend persists whole session records.
type Backend interface {
	Load(ctx context.Context, phone string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// RedisBackend stores sessions as JSON without expiry.
type RedisBackend struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisBackend panics on a nil client.
func NewRedisBackend(client *redis.Client, tracer trace.Tracer) *RedisBackend {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("leadbot.internal.session")
	}
	return &RedisBackend{redis: client, tracer: tracer}
}

func (b *RedisBackend) Load(ctx context.Context, phone string) (*Session, error) {
	ctx, span := b.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := b.redis.Get(ctx, sessionKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load %s: %w", phone, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode %s: %w", phone, err)
	}
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[Checkpoint]time.Time)
	}
	return &s, nil
}

func (b *RedisBackend) Save(ctx context.Context, s *Session) error {
	ctx, span := b.tracer.Start(ctx, "session.save")
	defer span.End()

	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", s.Phone, err)
	}
	if err := b.redis.Set(ctx, sessionKey(s.Phone), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist %s: %w", s.Phone, err)
	}
	return nil
}

func sessionKey(phone string) string {
	return fmt.Sprintf("session:%s", phone)
}

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, phone string) (*Session, error) {
	b.mu.RLock()
	data, ok := b.sessions[phone]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: failed to decode %s: %w", phone, err)
	}
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[Checkpoint]time.Time)
	}
	return &s, nil
}

func (b *MemoryBackend) Save(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal %s: %w", s.Phone, err)
	}
	b.mu.Lock()
	b.sessions[s.Phone] = data
	b.mu.Unlock()
	return nil
}
