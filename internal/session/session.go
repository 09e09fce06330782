// Package session ties the caches to a signed-in user's lifetime. Logout
// drops everything cached on the user's behalf from the device.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/logging"
	"github.com/dmitrijs2005/transfercache/internal/respcache"
)

// TaskStore is the part of taskcache.Store the logout flow needs.
type TaskStore interface {
	AssociateIDs(userID string) ([]string, error)
	Delete(userID, associateID string) error
}

type Manager struct {
	tasks     TaskStore
	responses respcache.Repository
	respOpts  []respcache.Option
	log       logging.Logger
}

type Option func(*Manager)

// WithResponseCache enables clearing the response cache on logout. Without
// it only task state is purged.
func WithResponseCache(repo respcache.Repository, opts ...respcache.Option) Option {
	return func(m *Manager) {
		m.responses = repo
		m.respOpts = opts
	}
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func NewManager(tasks TaskStore, opts ...Option) *Manager {
	m := &Manager{tasks: tasks}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.NewDiscard()
	}
	m.log = m.log.With("component", "session")
	return m
}

// Logout clears the user's response cache and deletes every task still
// indexed for the user. Task deletion keeps going past individual failures;
// the failures are returned joined.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", common.ErrInvalidArgument)
	}

	if m.responses != nil {
		opts := append([]respcache.Option{respcache.WithLogger(m.log)}, m.respOpts...)
		rc, err := respcache.New(m.responses, userID, opts...)
		if err != nil {
			return err
		}
		rc.ClearForLogout(ctx)
	}

	if m.tasks == nil {
		return nil
	}

	ids, err := m.tasks.AssociateIDs(userID)
	if err != nil {
		return fmt.Errorf("failed to list tasks of %s: %w", userID, err)
	}

	var errs []error
	for _, id := range ids {
		if err := m.tasks.Delete(userID, id); err != nil {
			m.log.Warn(ctx, "task delete failed", "user_id", userID, "associate_id", id, "error", err)
			errs = append(errs, err)
		}
	}

	m.log.Info(ctx, "logged out", "user_id", userID, "tasks", len(ids), "failed", len(errs))
	return errors.Join(errs...)
}
