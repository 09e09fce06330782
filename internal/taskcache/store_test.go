package taskcache

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/cryptox"
	"github.com/dmitrijs2005/transfercache/internal/hooks"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

func newAESHook(t *testing.T) *cryptox.AESGCM {
	t.Helper()
	h, err := cryptox.NewAESGCM(common.GenerateRandByteArray(cryptox.KeySize))
	require.NoError(t, err)
	return h
}

func strPtr(s string) *string { return &s }

func TestNew_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache", "root")
	s, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())

	for _, sub := range []string{sessionsDir, usersDir, locksDir} {
		fi, err := os.Stat(filepath.Join(root, sub))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = New(file)
	assert.ErrorIs(t, err, common.ErrIOFailure)

	if os.Geteuid() != 0 {
		ro := filepath.Join(t.TempDir(), "ro")
		require.NoError(t, os.Mkdir(ro, 0o500))
		_, err = New(filepath.Join(ro, "cache"))
		assert.ErrorIs(t, err, common.ErrIOFailure)
	}
}

func TestRecordIndex_Validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name               string
		user, assoc, bgSes string
	}{
		{"empty user", "", "a", "bg"},
		{"empty associate", "u", "", "bg"},
		{"empty session", "u", "a", ""},
		{"dot dot", "..", "a", "bg"},
		{"separator", "u", "a/b", "bg"},
		{"nul", "u", "a", "b\x00g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RecordIndex(tt.user, tt.assoc, tt.bgSes, 1)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
}

func TestRecordIndex_ThenResolve(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordIndex("u1", "assoc1", "bg-session-1", 7))

	pk, err := s.ResolveIndex("u1", "assoc1")
	require.NoError(t, err)
	assert.Equal(t, PrimaryKey{BackgroundSessionID: "bg-session-1", SessionTaskID: 7}, pk)

	_, err = s.ResolveIndex("u1", "other")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetch_IndexWithoutFieldsIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Fetch("u1", "assoc1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.RecordIndex("u1", "assoc1", "bg", 1))
	_, err = s.Fetch("u1", "assoc1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestScenario_RecordWriteFetchDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordIndex("u1", "assoc1", "bgSess", 42))
	require.NoError(t, s.SetResumeData("bgSess", 42, []byte{0xAA, 0xBB}))

	info, err := s.Fetch("u1", "assoc1")
	require.NoError(t, err)
	want := &CachedInfo{BackgroundSessionID: "bgSess", SessionTaskID: 42, ResumeData: []byte{0xAA, 0xBB}}
	assert.Empty(t, cmp.Diff(want, info))

	require.NoError(t, s.Delete("u1", "assoc1"))
	_, err = s.Fetch("u1", "assoc1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFields_LastWriteWinsAndIndependent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordIndex("u", "a", "bg", 3))

	resp1 := &Response{URL: "https://api.example.com/files/1", StatusCode: 200}
	resp2 := &Response{
		URL:                   "https://api.example.com/files/2",
		StatusCode:            503,
		Header:                http.Header{"Retry-After": {"5"}, "X-Request-Id": {"abc", "def"}},
		MIMEType:              "application/json",
		ExpectedContentLength: 12,
	}
	taskErr := &TaskError{Domain: DomainURL, Code: CodeTimedOut, Detail: "timed out", UserInfo: map[string]string{"url": "x"}}

	require.NoError(t, s.SetDestinationFilePath("bg", 3, "/tmp/first"))
	require.NoError(t, s.SetResumeData("bg", 3, []byte("r1")))
	require.NoError(t, s.SetResponse("bg", 3, resp1))
	require.NoError(t, s.SetResumeData("bg", 3, []byte("r2")))
	require.NoError(t, s.SetResponseData("bg", 3, []byte(`{"error":"busy"}`)))
	require.NoError(t, s.SetResponse("bg", 3, resp2))
	require.NoError(t, s.SetError("bg", 3, taskErr))
	require.NoError(t, s.SetDestinationFilePath("bg", 3, "/tmp/second"))

	info, err := s.Fetch("u", "a")
	require.NoError(t, err)

	want := &CachedInfo{
		BackgroundSessionID: "bg",
		SessionTaskID:       3,
		DestinationFilePath: strPtr("/tmp/second"),
		ResumeData:          []byte("r2"),
		Response:            resp2,
		ResponseData:        []byte(`{"error":"busy"}`),
		Error:               taskErr,
	}
	assert.Empty(t, cmp.Diff(want, info))
}

func TestFields_EmptyIsPresentNotAbsent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))
	require.NoError(t, s.SetResponseData("bg", 1, []byte{}))
	require.NoError(t, s.SetDestinationFilePath("bg", 1, ""))

	info, err := s.Fetch("u", "a")
	require.NoError(t, err)
	require.NotNil(t, info.ResponseData)
	assert.Empty(t, info.ResponseData)
	require.NotNil(t, info.DestinationFilePath)
	assert.Equal(t, "", *info.DestinationFilePath)
	assert.Nil(t, info.ResumeData)
	assert.Nil(t, info.Response)
	assert.Nil(t, info.Error)
}

func TestSetStructured_NilIsInvalid(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.SetResponse("bg", 1, nil), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.SetError("bg", 1, nil), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.SetResumeData("", 1, []byte("x")), common.ErrInvalidArgument)
}

func TestLayout_FileNames(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordIndex("u1", "assoc1", "bgSess", 42))
	require.NoError(t, s.SetDestinationFilePath("bgSess", 42, "/dl/file.bin"))
	require.NoError(t, s.SetResumeData("bgSess", 42, []byte("r")))
	require.NoError(t, s.SetResponseData("bgSess", 42, []byte("d")))
	require.NoError(t, s.SetResponse("bgSess", 42, &Response{StatusCode: 200}))
	require.NoError(t, s.SetError("bgSess", 42, &TaskError{Domain: DomainClient, Code: 1}))

	dir := filepath.Join(s.Root(), "sessions", "bgSess", "42")
	for _, name := range []string{"destinationFilePath", "resumeData", "response", "responseData", "error"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	marker, err := os.ReadFile(filepath.Join(s.Root(), "users", "u1", "assoc1"))
	require.NoError(t, err)
	assert.Equal(t, "bgSess-42", string(marker))

	raw, err := os.ReadFile(filepath.Join(dir, "destinationFilePath"))
	require.NoError(t, err)
	assert.Equal(t, "/dl/file.bin", string(raw), "without a hook the path is stored as raw text")
}

func TestEncryption_RoundTripSizes(t *testing.T) {
	s := newTestStore(t, WithHook(newAESHook(t)))
	require.NoError(t, s.RecordIndex("u", "a", "bg", 9))

	for _, size := range []int{0, 1, 1<<20 + 3} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			in := common.GenerateRandByteArray(size)
			require.NoError(t, s.SetResumeData("bg", 9, in))
			require.NoError(t, s.SetResponseData("bg", 9, in))

			info, err := s.Fetch("u", "a")
			require.NoError(t, err)
			assert.True(t, bytes.Equal(in, info.ResumeData))
			assert.True(t, bytes.Equal(in, info.ResponseData))
		})
	}
}

func TestEncryption_AppliedToEveryField(t *testing.T) {
	s := newTestStore(t, WithHook(hooks.Chain(hooks.LZ4{}, newAESHook(t))))
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))

	resp := &Response{URL: "https://example.com/secret", StatusCode: 201}
	require.NoError(t, s.SetDestinationFilePath("bg", 1, "/secret/path"))
	require.NoError(t, s.SetResponse("bg", 1, resp))

	raw, err := os.ReadFile(s.fieldPath(PrimaryKey{"bg", 1}, FieldDestinationFilePath))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "/secret/path")

	raw, err = os.ReadFile(s.fieldPath(PrimaryKey{"bg", 1}, FieldResponse))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "example.com")

	info, err := s.Fetch("u", "a")
	require.NoError(t, err)
	assert.Equal(t, "/secret/path", *info.DestinationFilePath)
	assert.Empty(t, cmp.Diff(resp, info.Response))
}

func TestEncryption_SourceWithdrawnFallsBackToIdentity(t *testing.T) {
	var (
		mu      sync.Mutex
		current hooks.Hook = newAESHook(t)
	)
	src := func() hooks.Hook {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	s := newTestStore(t, WithHookSource(src))
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))

	mu.Lock()
	current = nil
	mu.Unlock()

	require.NoError(t, s.SetResumeData("bg", 1, []byte("plain")))
	info, err := s.Fetch("u", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), info.ResumeData)

	raw, err := os.ReadFile(s.fieldPath(PrimaryKey{"bg", 1}, FieldResumeData))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), raw)
}

func TestFetch_UndecryptableIsSerializationFailure(t *testing.T) {
	root := t.TempDir()
	plain, err := New(root)
	require.NoError(t, err)
	require.NoError(t, plain.RecordIndex("u", "a", "bg", 1))
	require.NoError(t, plain.SetResumeData("bg", 1, []byte("not encrypted")))

	enc, err := New(root, WithHook(newAESHook(t)))
	require.NoError(t, err)
	_, err = enc.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrSerialization)
}

func TestFetch_CorruptArchiveIsSerializationFailure(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))
	require.NoError(t, s.SetResponse("bg", 1, &Response{StatusCode: 200}))

	require.NoError(t, os.WriteFile(s.fieldPath(PrimaryKey{"bg", 1}, FieldResponse), []byte("{garbage"), 0o600))
	_, err := s.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrSerialization)

	// a valid error archive in the response slot is rejected too
	data, err := archiveError(&TaskError{Domain: "d", Code: 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.fieldPath(PrimaryKey{"bg", 1}, FieldResponse), data, 0o600))
	_, err = s.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrSerialization)
}

func TestDelete_IdempotentAndRemovesStorage(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Delete("u", "never-cached"))
	require.NoError(t, s.Delete("u", "never-cached"))

	require.NoError(t, s.RecordIndex("u", "a", "bg", 5))
	require.NoError(t, s.SetResumeData("bg", 5, []byte("x")))
	require.NoError(t, s.SetError("bg", 5, &TaskError{Domain: DomainClient, Code: CodeCancelled}))

	require.NoError(t, s.Delete("u", "a"))
	require.NoError(t, s.Delete("u", "a"))

	_, err := os.Stat(s.taskDir(PrimaryKey{"bg", 5}))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.markerPath(SecondaryKey{"u", "a"}))
	assert.True(t, os.IsNotExist(err))

	_, err = s.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.FetchByPrimaryKey("bg", 5)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_MalformedIndexIsRemoved(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.userDir("u"), 0o700))
	require.NoError(t, os.WriteFile(s.markerPath(SecondaryKey{"u", "a"}), []byte("no-task-id-"), 0o600))

	_, err := s.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrSerialization)

	require.NoError(t, s.Delete("u", "a"))
	_, err = s.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecordIndex_OverwritesPreviousMapping(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetResumeData("old", 1, []byte("old")))
	require.NoError(t, s.SetResumeData("new", 2, []byte("new")))

	require.NoError(t, s.RecordIndex("u", "a", "old", 1))
	require.NoError(t, s.RecordIndex("u", "a", "new", 2))

	info, err := s.Fetch("u", "a")
	require.NoError(t, err)
	assert.Equal(t, "new", info.BackgroundSessionID)
	assert.Equal(t, []byte("new"), info.ResumeData)

	require.NoError(t, s.Delete("u", "a"))

	// the previously indexed task is not owned by the index any more
	old, err := s.FetchByPrimaryKey("old", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), old.ResumeData)
}

func TestAssociateIDs(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.AssociateIDs("u")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.RecordIndex("u", "b", "bg", 2))
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))
	require.NoError(t, s.RecordIndex("other", "c", "bg", 3))

	ids, err = s.AssociateIDs("u")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete("u", "a"))
	ids, err = s.AssociateIDs("u")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	_, err = s.AssociateIDs("")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestConcurrent_DifferentFieldsDoNotInterfere(t *testing.T) {
	s := newTestStore(t, WithHook(newAESHook(t)))
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))

	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); assert.NoError(t, s.SetResumeData("bg", 1, []byte("resume"))) }()
		go func() { defer wg.Done(); assert.NoError(t, s.SetResponseData("bg", 1, []byte("body"))) }()
		go func() { defer wg.Done(); assert.NoError(t, s.SetDestinationFilePath("bg", 1, "/dst")) }()
	}
	wg.Wait()

	info, err := s.Fetch("u", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("resume"), info.ResumeData)
	assert.Equal(t, []byte("body"), info.ResponseData)
	assert.Equal(t, "/dst", *info.DestinationFilePath)
}

func TestConcurrent_SameFieldLastWriterWins(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordIndex("u", "a", "bg", 1))

	values := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		v := fmt.Sprintf("value-%02d", i)
		values[v] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SetResumeData("bg", 1, []byte(v)))
		}()
	}
	wg.Wait()

	info, err := s.Fetch("u", "a")
	require.NoError(t, err)
	assert.True(t, values[string(info.ResumeData)], "got torn value %q", info.ResumeData)
}

func TestConcurrent_DeleteVersusWriteAcrossInstances(t *testing.T) {
	root := t.TempDir()
	writer, err := New(root)
	require.NoError(t, err)
	deleter, err := New(root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, writer.RecordIndex("u", "a", "bg", 1))
			assert.NoError(t, writer.SetResumeData("bg", 1, []byte("x")))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, deleter.Delete("u", "a"))
		}()
	}
	wg.Wait()

	// whatever the interleaving, the state is either complete or gone
	info, err := writer.Fetch("u", "a")
	if err != nil {
		assert.True(t, errors.Is(err, common.ErrNotFound), "unexpected error %v", err)
	} else {
		assert.Equal(t, []byte("x"), info.ResumeData)
	}

	require.NoError(t, deleter.Delete("u", "a"))
	_, err = writer.Fetch("u", "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestParseMarker(t *testing.T) {
	pk, err := parseMarker([]byte("com.example.bg-session-7-42"))
	require.NoError(t, err)
	assert.Equal(t, PrimaryKey{BackgroundSessionID: "com.example.bg-session-7", SessionTaskID: 42}, pk)

	for _, bad := range []string{"", "42", "-42", "bg-", "bg-x"} {
		_, err := parseMarker([]byte(bad))
		assert.Error(t, err, bad)
	}
}
