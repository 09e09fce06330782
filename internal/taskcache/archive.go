package taskcache

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/transfercache/internal/common"
)

const archiveVersion = 1

// archive is the envelope for structured fields. encoding/json emits struct
// fields in declaration order and map keys sorted, so equal values always
// archive to equal bytes.
type archive struct {
	Version  int        `json:"version"`
	Kind     string     `json:"kind"`
	Response *Response  `json:"response,omitempty"`
	Error    *TaskError `json:"error,omitempty"`
}

func archiveResponse(r *Response) ([]byte, error) {
	data, err := json.Marshal(archive{Version: archiveVersion, Kind: FieldResponse.String(), Response: r})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to archive response: %w", common.ErrSerialization, err)
	}
	return data, nil
}

func archiveError(e *TaskError) ([]byte, error) {
	data, err := json.Marshal(archive{Version: archiveVersion, Kind: FieldError.String(), Error: e})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to archive error: %w", common.ErrSerialization, err)
	}
	return data, nil
}

func unarchive(data []byte, want Field) (*archive, error) {
	var a archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: failed to unarchive %s: %w", common.ErrSerialization, want, err)
	}
	if a.Version != archiveVersion {
		return nil, fmt.Errorf("%w: unsupported %s archive version %d", common.ErrSerialization, want, a.Version)
	}
	if a.Kind != want.String() {
		return nil, fmt.Errorf("%w: expected %s archive, got %q", common.ErrSerialization, want, a.Kind)
	}
	return &a, nil
}

func unarchiveResponse(data []byte) (*Response, error) {
	a, err := unarchive(data, FieldResponse)
	if err != nil {
		return nil, err
	}
	if a.Response == nil {
		return nil, fmt.Errorf("%w: empty response archive", common.ErrSerialization)
	}
	return a.Response, nil
}

func unarchiveError(data []byte) (*TaskError, error) {
	a, err := unarchive(data, FieldError)
	if err != nil {
		return nil, err
	}
	if a.Error == nil {
		return nil, fmt.Errorf("%w: empty error archive", common.ErrSerialization)
	}
	return a.Error, nil
}
