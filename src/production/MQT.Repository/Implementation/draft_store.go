package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

const draftKeyPrefix = "site-dashboard:draft:"

// RedisDraftStore keeps drafts as JSON with a sliding TTL
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: ttl}
}

func (s *RedisDraftStore) Save(ctx context.Context, d mqtmodels.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	return s.client.Set(ctx, draftKeyPrefix+d.ID, payload, s.ttl).Err()
}

func (s *RedisDraftStore) Get(ctx context.Context, id string) (*mqtmodels.Draft, error) {
	val, err := s.client.Get(ctx, draftKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, interfaces.ErrDraftNotFound
		}
		return nil, err
	}
	var d mqtmodels.Draft
	if err := json.Unmarshal(val, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &d, nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, draftKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return interfaces.ErrDraftNotFound
	}
	return nil
}

type memoryDraft struct {
	draft     mqtmodels.Draft
	expiresAt time.Time
}

// MemoryDraftStore keeps drafts in process with the same TTL semantics
type MemoryDraftStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	drafts map[string]memoryDraft
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{ttl: ttl, now: time.Now, drafts: make(map[string]memoryDraft)}
}

func (s *MemoryDraftStore) Save(ctx context.Context, d mqtmodels.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.ID] = memoryDraft{draft: *cloneDraft(d), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryDraftStore) Get(ctx context.Context, id string) (*mqtmodels.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookup(id)
	if !ok {
		return nil, interfaces.ErrDraftNotFound
	}
	return cloneDraft(entry.draft), nil
}

func (s *MemoryDraftStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(id); !ok {
		return interfaces.ErrDraftNotFound
	}
	delete(s.drafts, id)
	return nil
}

// lookup drops expired entries. Caller holds mu.
func (s *MemoryDraftStore) lookup(id string) (memoryDraft, bool) {
	entry, ok := s.drafts[id]
	if !ok {
		return memoryDraft{}, false
	}
	if s.ttl > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.drafts, id)
		return memoryDraft{}, false
	}
	return entry, true
}
