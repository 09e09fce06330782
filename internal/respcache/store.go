package respcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/hooks"
	"github.com/dmitrijs2005/transfercache/internal/logging"
)

// Store is one user's view of the response cache. Methods never return
// errors; failures are logged and degrade to "not cached".
type Store struct {
	repo   Repository
	userID string
	hook   hooks.Source
	log    logging.Logger
}

type Option func(*Store)

// WithHook encrypts stored values with h.
func WithHook(h hooks.Hook) Option {
	return func(s *Store) { s.hook = hooks.Static(h) }
}

// WithHookSource looks the hook up on every call; a nil result stores and
// reads plain JSON.
func WithHookSource(src hooks.Source) Option {
	return func(s *Store) { s.hook = src }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New binds a Store to userID's namespace in repo.
func New(repo Repository, userID string, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: repository is required", common.ErrInvalidArgument)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", common.ErrInvalidArgument)
	}

	s := &Store{repo: repo, userID: userID}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.NewDiscard()
	}
	s.log = s.log.With("component", "respcache", "user_id", userID)
	return s, nil
}

// UserID returns the namespace the store is bound to.
func (s *Store) UserID() string {
	return s.userID
}

// Fetch calls fn with the cached mapping for key, or with nil on a miss.
// fn is always called exactly once.
func (s *Store) Fetch(ctx context.Context, key string, fn func(map[string]any)) {
	v, _ := s.Lookup(ctx, key)
	fn(v)
}

// Lookup returns the cached mapping for key. Read and decode failures are
// reported as a miss.
func (s *Store) Lookup(ctx context.Context, key string) (map[string]any, bool) {
	raw, err := s.repo.Get(ctx, s.userID, key)
	if err != nil {
		s.log.Warn(ctx, "response cache read failed", "key", key, "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	data, err := hooks.Resolve(s.hook).Decrypt(raw)
	if err != nil {
		s.log.Warn(ctx, "response cache decrypt failed", "key", key, "error", err)
		return nil, false
	}

	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil || v == nil {
		s.log.Warn(ctx, "response cache decode failed", "key", key, "error", err)
		return nil, false
	}
	return v, true
}

// Update stores mapping under key, replacing any previous value. A nil
// mapping is ignored.
func (s *Store) Update(ctx context.Context, key string, mapping map[string]any) {
	if mapping == nil {
		return
	}

	data, err := json.Marshal(mapping)
	if err != nil {
		s.log.Warn(ctx, "response cache encode failed", "key", key, "error", err)
		return
	}
	enc, err := hooks.Resolve(s.hook).Encrypt(data)
	if err != nil {
		s.log.Warn(ctx, "response cache encrypt failed", "key", key, "error", err)
		return
	}
	if err := s.repo.Set(ctx, s.userID, key, enc); err != nil {
		s.log.Warn(ctx, "response cache write failed", "key", key, "error", err)
	}
}

// Remove drops key from the cache. Missing keys are fine.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.repo.Delete(ctx, s.userID, key); err != nil {
		s.log.Warn(ctx, "response cache remove failed", "key", key, "error", err)
	}
}

// RemoveAll clears every entry of this user.
func (s *Store) RemoveAll(ctx context.Context) {
	if err := s.repo.Clear(ctx, s.userID); err != nil {
		s.log.Warn(ctx, "response cache clear failed", "error", err)
	}
}

// ClearForLogout is RemoveAll, called when the user's session ends so cached
// responses never leak into the next session on the device.
func (s *Store) ClearForLogout(ctx context.Context) {
	s.RemoveAll(ctx)
	s.log.Info(ctx, "response cache cleared for logout")
}

// Keys lists the cached keys of this user; empty on failure.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.repo.Keys(ctx, s.userID)
	if err != nil {
		s.log.Warn(ctx, "response cache list failed", "error", err)
		return []string{}
	}
	return keys
}
