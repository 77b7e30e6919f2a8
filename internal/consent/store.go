package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
)

// Store persists per-visitor consent decisions. Get never fails upward: a
// missing, corrupt, or unrecognized record reads as Unset. Set writes
// through immediately; there is no caching layer, every Get re-reads.
type Store interface {
	Get(ctx context.Context, visitorID string) Decision
	Set(ctx context.Context, visitorID string, d Decision) error
}

// record is the stored shape: the decision string plus a policy-version tag
// so a future policy change can invalidate old choices.
type record struct {
	Decision      string    `json:"decision"`
	PolicyVersion string    `json:"policy_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RedisStore keeps decisions in Redis under <prefix>:<visitorID>.
type RedisStore struct {
	client        *redis.Client
	keyPrefix     string
	policyVersion string
}

// NewRedisStore creates a Redis-backed consent store.
func NewRedisStore(client *redis.Client, keyPrefix, policyVersion string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "vlm_consent"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, policyVersion: policyVersion}
}

func (s *RedisStore) key(visitorID string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, visitorID)
}

// Get reads the stored decision for visitorID. Redis errors and unparseable
// records degrade to Unset with a diagnostic.
func (s *RedisStore) Get(ctx context.Context, visitorID string) Decision {
	raw, err := s.client.Get(ctx, s.key(visitorID)).Result()
	if err == redis.Nil {
		return Unset
	}
	if err != nil {
		logger.Warn("consent read failed, treating as unset", "visitor", visitorID, "error", err.Error())
		return Unset
	}

	var rec record
	if jsonErr := json.Unmarshal([]byte(raw), &rec); jsonErr == nil && rec.Decision != "" {
		return ParseDecision(rec.Decision)
	}
	// Legacy flat value: the decision string stored bare.
	return ParseDecision(raw)
}

// Set writes the decision through immediately. Only explicit choices are
// storable; Unset is represented by the absence of a record.
func (s *RedisStore) Set(ctx context.Context, visitorID string, d Decision) error {
	if d != Accepted && d != Rejected {
		return fmt.Errorf("consent: cannot store decision %q", d)
	}
	rec := record{
		Decision:      string(d),
		PolicyVersion: s.policyVersion,
		UpdatedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("consent: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(visitorID), data, 0).Err(); err != nil {
		return fmt.Errorf("consent: store decision: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for embedding the core without Redis
// and for tests.
type MemoryStore struct {
	mu            sync.RWMutex
	decisions     map[string]Decision
	policyVersion string
}

// NewMemoryStore creates an empty in-memory consent store.
func NewMemoryStore(policyVersion string) *MemoryStore {
	return &MemoryStore{decisions: make(map[string]Decision), policyVersion: policyVersion}
}

// Get returns the stored decision, or Unset when none exists.
func (s *MemoryStore) Get(_ context.Context, visitorID string) Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.decisions[visitorID]; ok {
		return d
	}
	return Unset
}

// Set records an explicit choice.
func (s *MemoryStore) Set(_ context.Context, visitorID string, d Decision) error {
	if d != Accepted && d != Rejected {
		return fmt.Errorf("consent: cannot store decision %q", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[visitorID] = d
	return nil
}
