package taskcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/filex"
	"github.com/dmitrijs2005/transfercache/internal/hooks"
	"github.com/dmitrijs2005/transfercache/internal/logging"
)

// Store is the directory-tree backed task-state cache. It keeps no state
// besides its root, hook source and lock table; every Fetch reads storage.
type Store struct {
	root   string
	hook   hooks.Source
	log    logging.Logger
	locker *keyLocker
}

type Option func(*Store)

// WithHook installs a fixed encryption hook.
func WithHook(h hooks.Hook) Option {
	return func(s *Store) { s.hook = hooks.Static(h) }
}

// WithHookSource installs a hook that is looked up on every operation. The
// source may start returning nil at any time; the store then stores and reads
// plain bytes.
func WithHookSource(src hooks.Source) Option {
	return func(s *Store) { s.hook = src }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New opens a store rooted at rootDir, creating the directory tree when
// missing. It fails with ErrInvalidArgument for an empty root and
// ErrIOFailure when the root cannot be created or written.
func New(rootDir string, opts ...Option) (*Store, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("%w: cache root directory is required", common.ErrInvalidArgument)
	}

	root, err := filex.EnsureDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cache root: %w", common.ErrIOFailure, err)
	}
	for _, sub := range []string{sessionsDir, usersDir, locksDir} {
		if _, err := filex.EnsureDir(filepath.Join(root, sub)); err != nil {
			return nil, fmt.Errorf("%w: failed to create %s: %w", common.ErrIOFailure, sub, err)
		}
	}
	if err := filex.ProbeWritable(root); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}

	s := &Store{
		root:   root,
		locker: newKeyLocker(filepath.Join(root, locksDir)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.NewDiscard()
	}
	s.log = s.log.With("component", "taskcache")
	return s, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// RecordIndex maps (userID, associateID) to the task (backgroundSessionID,
// sessionTaskID), replacing any previous mapping for the pair.
func (s *Store) RecordIndex(userID, associateID, backgroundSessionID string, sessionTaskID uint64) error {
	sk := SecondaryKey{UserID: userID, AssociateID: associateID}
	pk := PrimaryKey{BackgroundSessionID: backgroundSessionID, SessionTaskID: sessionTaskID}
	if err := sk.validate(); err != nil {
		return err
	}
	if err := pk.validate(); err != nil {
		return err
	}

	unlock, err := s.locker.lock(sk.lockKey())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	if err := filex.WriteFileAtomic(s.markerPath(sk), encodeMarker(pk)); err != nil {
		return fmt.Errorf("%w: failed to record index %s: %w", common.ErrIOFailure, sk, err)
	}
	s.log.Debug(context.Background(), "index recorded", "user_id", userID, "associate_id", associateID, "task", pk.String())
	return nil
}

// SetDestinationFilePath caches where a finished download was moved to.
func (s *Store) SetDestinationFilePath(backgroundSessionID string, sessionTaskID uint64, path string) error {
	return s.writeField(PrimaryKey{backgroundSessionID, sessionTaskID}, FieldDestinationFilePath, []byte(path))
}

// SetResumeData caches the data needed to restart an interrupted download.
func (s *Store) SetResumeData(backgroundSessionID string, sessionTaskID uint64, resumeData []byte) error {
	return s.writeField(PrimaryKey{backgroundSessionID, sessionTaskID}, FieldResumeData, resumeData)
}

// SetResponseData caches the response body (which may carry a server error).
func (s *Store) SetResponseData(backgroundSessionID string, sessionTaskID uint64, responseData []byte) error {
	return s.writeField(PrimaryKey{backgroundSessionID, sessionTaskID}, FieldResponseData, responseData)
}

// SetResponse archives and caches the task's response status, headers and URL.
func (s *Store) SetResponse(backgroundSessionID string, sessionTaskID uint64, response *Response) error {
	if response == nil {
		return fmt.Errorf("%w: response is required", common.ErrInvalidArgument)
	}
	data, err := archiveResponse(response)
	if err != nil {
		return err
	}
	return s.writeField(PrimaryKey{backgroundSessionID, sessionTaskID}, FieldResponse, data)
}

// SetError archives and caches the client-side error the task ended with.
func (s *Store) SetError(backgroundSessionID string, sessionTaskID uint64, taskError *TaskError) error {
	if taskError == nil {
		return fmt.Errorf("%w: task error is required", common.ErrInvalidArgument)
	}
	data, err := archiveError(taskError)
	if err != nil {
		return err
	}
	return s.writeField(PrimaryKey{backgroundSessionID, sessionTaskID}, FieldError, data)
}

// writeField replaces one field of k with the hook-transformed data. Other
// fields are never touched.
func (s *Store) writeField(k PrimaryKey, f Field, data []byte) error {
	if err := k.validate(); err != nil {
		return err
	}

	enc, err := hooks.Resolve(s.hook).Encrypt(data)
	if err != nil {
		return fmt.Errorf("%w: failed to encrypt %s of %s: %w", common.ErrIOFailure, f, k, err)
	}

	unlock, err := s.locker.lock(k.lockKey())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	if err := filex.WriteFileAtomic(s.fieldPath(k, f), enc); err != nil {
		return fmt.Errorf("%w: failed to write %s of %s: %w", common.ErrIOFailure, f, k, err)
	}
	s.log.Debug(context.Background(), "field cached", "task", k.String(), "field", f.String(), "bytes", len(data))
	return nil
}

// ResolveIndex returns the PrimaryKey recorded for (userID, associateID)
// without looking at the task's fields.
func (s *Store) ResolveIndex(userID, associateID string) (PrimaryKey, error) {
	sk := SecondaryKey{UserID: userID, AssociateID: associateID}
	if err := sk.validate(); err != nil {
		return PrimaryKey{}, err
	}

	unlock, err := s.locker.lock(sk.lockKey())
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	pk, ok, err := s.readIndex(sk)
	if err != nil {
		return PrimaryKey{}, err
	}
	if !ok {
		return PrimaryKey{}, fmt.Errorf("%w: no task recorded for %s", common.ErrNotFound, sk)
	}
	return pk, nil
}

// Fetch returns every field cached for the task recorded under
// (userID, associateID). It fails with ErrNotFound when no index exists or
// when the indexed task has no fields yet.
func (s *Store) Fetch(userID, associateID string) (*CachedInfo, error) {
	sk := SecondaryKey{UserID: userID, AssociateID: associateID}
	if err := sk.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.lock(sk.lockKey())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	pk, ok, err := s.readIndex(sk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no task recorded for %s", common.ErrNotFound, sk)
	}
	return s.fetchTask(pk)
}

// FetchByPrimaryKey is Fetch for callers that already know the task identity.
func (s *Store) FetchByPrimaryKey(backgroundSessionID string, sessionTaskID uint64) (*CachedInfo, error) {
	pk := PrimaryKey{BackgroundSessionID: backgroundSessionID, SessionTaskID: sessionTaskID}
	if err := pk.validate(); err != nil {
		return nil, err
	}
	return s.fetchTask(pk)
}

func (s *Store) fetchTask(pk PrimaryKey) (*CachedInfo, error) {
	unlock, err := s.locker.lock(pk.lockKey())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	info := &CachedInfo{BackgroundSessionID: pk.BackgroundSessionID, SessionTaskID: pk.SessionTaskID}
	hook := hooks.Resolve(s.hook)
	found := 0

	for _, f := range Fields() {
		raw, ok, err := filex.ReadFileIfExists(s.fieldPath(pk, f))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s of %s: %w", common.ErrIOFailure, f, pk, err)
		}
		if !ok {
			continue
		}
		found++

		data, err := hook.Decrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt %s of %s: %w", common.ErrSerialization, f, pk, err)
		}
		if data == nil {
			data = []byte{}
		}

		switch f {
		case FieldDestinationFilePath:
			p := string(data)
			info.DestinationFilePath = &p
		case FieldResumeData:
			info.ResumeData = data
		case FieldResponseData:
			info.ResponseData = data
		case FieldResponse:
			if info.Response, err = unarchiveResponse(data); err != nil {
				return nil, err
			}
		case FieldError:
			if info.Error, err = unarchiveError(data); err != nil {
				return nil, err
			}
		}
	}

	if found == 0 {
		return nil, fmt.Errorf("%w: task %s has no cached fields", common.ErrNotFound, pk)
	}
	return info, nil
}

// Delete removes the index record for (userID, associateID) and everything
// cached for the task it points at. Deleting something that was never
// cached succeeds.
func (s *Store) Delete(userID, associateID string) error {
	sk := SecondaryKey{UserID: userID, AssociateID: associateID}
	if err := sk.validate(); err != nil {
		return err
	}

	unlock, err := s.locker.lock(sk.lockKey())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	pk, ok, err := s.readIndex(sk)
	if err != nil && !errors.Is(err, common.ErrSerialization) {
		return err
	}
	if ok {
		if err := s.removeTask(pk); err != nil {
			return err
		}
	}

	// the task goes first so a failed delete can be retried through the index
	if err := os.Remove(s.markerPath(sk)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove index %s: %w", common.ErrIOFailure, sk, err)
	}
	if ok {
		s.log.Info(context.Background(), "task cache deleted", "user_id", userID, "associate_id", associateID, "task", pk.String())
	}
	return nil
}

func (s *Store) removeTask(pk PrimaryKey) error {
	unlock, err := s.locker.lock(pk.lockKey())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	defer unlock()

	if err := os.RemoveAll(s.taskDir(pk)); err != nil {
		return fmt.Errorf("%w: failed to remove task %s: %w", common.ErrIOFailure, pk, err)
	}
	return nil
}

// AssociateIDs lists the associate ids that still have an index record for
// userID, sorted. A user with nothing recorded yields an empty list.
func (s *Store) AssociateIDs(userID string) ([]string, error) {
	if err := validateID("user id", userID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.userDir(userID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: failed to list tasks of %s: %w", common.ErrIOFailure, userID, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// readIndex loads the index record for sk. A missing record is (_, false,
// nil); an unreadable one is ErrIOFailure; a malformed one is
// ErrSerialization.
func (s *Store) readIndex(sk SecondaryKey) (PrimaryKey, bool, error) {
	data, ok, err := filex.ReadFileIfExists(s.markerPath(sk))
	if err != nil {
		return PrimaryKey{}, false, fmt.Errorf("%w: failed to read index %s: %w", common.ErrIOFailure, sk, err)
	}
	if !ok {
		return PrimaryKey{}, false, nil
	}

	pk, err := parseMarker(data)
	if err != nil {
		s.log.Warn(context.Background(), "malformed index record", "index", sk.String(), "error", err)
		return PrimaryKey{}, false, fmt.Errorf("%w: %w", common.ErrSerialization, err)
	}
	return pk, true, nil
}
