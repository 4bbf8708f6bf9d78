package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultDraftTTL bounds how long an abandoned draft survives in Redis
const DefaultDraftTTL = 30 * 24 * time.Hour

// RedisDraftStore keeps drafts as JSON values under salesdocs:draft:<project>:<type>.
// Each save is a single SET, so the previous payload is replaced as a whole.
type RedisDraftStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisDraftStore creates a draft store on an existing client.
// A non-positive ttl selects DefaultDraftTTL.
func NewRedisDraftStore(client redis.UniversalClient, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftStore{client: client, ttl: ttl, now: time.Now}
}

type redisDraft struct {
	Payload   document.Payload `json:"payload"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DraftKey returns the Redis key of a draft
func DraftKey(projectID uuid.UUID, t document.DocumentType) string {
	return fmt.Sprintf("%sdraft:%s:%s", KeyPrefix, projectID, t)
}

// SaveDraft replaces the draft for the key and refreshes its TTL
func (s *RedisDraftStore) SaveDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType, payload document.Payload) error {
	data, err := json.Marshal(redisDraft{Payload: payload, UpdatedAt: s.now()})
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.client.Set(ctx, DraftKey(projectID, t), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	return nil
}

// LoadDraft returns the draft or shared.ErrNotFound
func (s *RedisDraftStore) LoadDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.DraftRecord, error) {
	data, err := s.client.Get(ctx, DraftKey(projectID, t)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	var stored redisDraft
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	if stored.Payload.Items == nil {
		stored.Payload.Items = []document.LineItem{}
	}
	return &document.DraftRecord{
		ProjectID:    projectID,
		DocumentType: t,
		Payload:      stored.Payload,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}

// DeleteDraft removes the draft; missing keys are not an error
func (s *RedisDraftStore) DeleteDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) error {
	if err := s.client.Del(ctx, DraftKey(projectID, t)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

var _ document.DraftStore = (*RedisDraftStore)(nil)
