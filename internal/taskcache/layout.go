package taskcache

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/transfercache/internal/common"
)

const (
	sessionsDir = "sessions"
	usersDir    = "users"
	locksDir    = "locks"

	// tempPrefix matches the names filex.WriteFileAtomic uses for in-flight
	// writes; such entries are never reported as data.
	tempPrefix = ".tmp-"
)

// validateID checks that v can be used as a single path component.
func validateID(name, v string) error {
	switch {
	case v == "":
		return fmt.Errorf("%w: %s is required", common.ErrInvalidArgument, name)
	case v == "." || v == "..":
		return fmt.Errorf("%w: %s must not be %q", common.ErrInvalidArgument, name, v)
	case strings.ContainsAny(v, `/\`+"\x00"):
		return fmt.Errorf("%w: %s %q contains a path separator", common.ErrInvalidArgument, name, v)
	}
	return nil
}

func (k PrimaryKey) validate() error {
	return validateID("background session id", k.BackgroundSessionID)
}

func (k SecondaryKey) validate() error {
	if err := validateID("user id", k.UserID); err != nil {
		return err
	}
	return validateID("associate id", k.AssociateID)
}

func (k PrimaryKey) lockKey() string {
	return "task\x00" + k.BackgroundSessionID + "\x00" + strconv.FormatUint(k.SessionTaskID, 10)
}

func (k SecondaryKey) lockKey() string {
	return "index\x00" + k.UserID + "\x00" + k.AssociateID
}

func (s *Store) taskDir(k PrimaryKey) string {
	return filepath.Join(s.root, sessionsDir, k.BackgroundSessionID, strconv.FormatUint(k.SessionTaskID, 10))
}

func (s *Store) fieldPath(k PrimaryKey, f Field) string {
	return filepath.Join(s.taskDir(k), f.String())
}

func (s *Store) userDir(userID string) string {
	return filepath.Join(s.root, usersDir, userID)
}

func (s *Store) markerPath(k SecondaryKey) string {
	return filepath.Join(s.userDir(k.UserID), k.AssociateID)
}

// encodeMarker renders the index record content.
func encodeMarker(k PrimaryKey) []byte {
	return []byte(k.String())
}

// parseMarker splits on the last '-', so background session ids may contain
// dashes themselves.
func parseMarker(data []byte) (PrimaryKey, error) {
	s := strings.TrimSpace(string(data))
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return PrimaryKey{}, fmt.Errorf("malformed index record %q", s)
	}
	id, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("malformed task id in index record %q: %w", s, err)
	}
	k := PrimaryKey{BackgroundSessionID: s[:i], SessionTaskID: id}
	if err := k.validate(); err != nil {
		return PrimaryKey{}, err
	}
	return k, nil
}
