// Package state keeps wizard drafts in memory so a reconnecting surface can
// resume where it left off.
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabrielmiguelok/golivecatalog/pkg/forms"
)

// Common store errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrStoreClosed = errors.New("store is closed")
	ErrInvalidData = errors.New("invalid data format")
)

// Store is the interface for state storage backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Draft is a saved wizard snapshot for one session.
type Draft struct {
	SessionID string      `msgpack:"session_id"`
	State     forms.State `msgpack:"state"`
	Version   uint64      `msgpack:"version"`
	SavedAt   time.Time   `msgpack:"saved_at"`
}

// DraftManager saves and loads drafts keyed by session ID.
type DraftManager struct {
	store      Store
	serializer *MsgPackSerializer
	keyPrefix  string
	ttl        time.Duration

	// mu serializes the read-modify-write of Save against Delete.
	mu sync.Mutex
}

// DraftManagerOption configures the draft manager.
type DraftManagerOption func(*DraftManager)

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) DraftManagerOption {
	return func(dm *DraftManager) {
		dm.keyPrefix = prefix
	}
}

// WithTTL sets how long a draft survives without being saved again.
func WithTTL(ttl time.Duration) DraftManagerOption {
	return func(dm *DraftManager) {
		dm.ttl = ttl
	}
}

// NewDraftManager creates a new draft manager.
func NewDraftManager(store Store, opts ...DraftManagerOption) *DraftManager {
	dm := &DraftManager{
		store:      store,
		serializer: NewMsgPackSerializer(),
		keyPrefix:  "golivecatalog:draft:",
		ttl:        30 * time.Minute,
	}
	for _, opt := range opts {
		opt(dm)
	}
	return dm
}

// Save stores the snapshot, bumping the version of any previous draft.
func (dm *DraftManager) Save(ctx context.Context, sessionID string, s forms.State) (*Draft, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var version uint64 = 1
	if prev, err := dm.Load(ctx, sessionID); err == nil {
		version = prev.Version + 1
	}

	draft := &Draft{
		SessionID: sessionID,
		State:     s,
		Version:   version,
		SavedAt:   time.Now(),
	}

	data, err := dm.serializer.Marshal(draft)
	if err != nil {
		return nil, err
	}
	if err := dm.store.Set(ctx, dm.keyPrefix+sessionID, data, dm.ttl); err != nil {
		return nil, err
	}
	return draft, nil
}

// Load retrieves the draft of a session.
func (dm *DraftManager) Load(ctx context.Context, sessionID string) (*Draft, error) {
	data, err := dm.store.Get(ctx, dm.keyPrefix+sessionID)
	if err != nil {
		return nil, err
	}

	var draft Draft
	if err := dm.serializer.Unmarshal(data, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// Delete removes the draft of a session.
func (dm *DraftManager) Delete(ctx context.Context, sessionID string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.store.Delete(ctx, dm.keyPrefix+sessionID)
}
