package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokoraya/checkout/internal/service"
)

// SessionStore persists checkout session snapshots keyed by invoice so a
// reloaded payment page resumes where it left off. Entries expire with the
// invoice's payment window.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(invoiceID string) string {
	return "checkout:session:" + invoiceID
}

func (s *SessionStore) Save(ctx context.Context, snap service.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(snap.InvoiceID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, invoiceID string) (*service.Snapshot, error) {
	data, err := s.client.Get(ctx, sessionKey(invoiceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap service.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SessionStore) Delete(ctx context.Context, invoiceID string) error {
	return s.client.Del(ctx, sessionKey(invoiceID)).Err()
}
