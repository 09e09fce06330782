package taskcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// PrimaryKey is the true identity of a transfer task.
type PrimaryKey struct {
	BackgroundSessionID string
	SessionTaskID       uint64
}

func (k PrimaryKey) String() string {
	return k.BackgroundSessionID + "-" + strconv.FormatUint(k.SessionTaskID, 10)
}

// SecondaryKey is the caller-chosen identity of a transfer task.
type SecondaryKey struct {
	UserID      string
	AssociateID string
}

func (k SecondaryKey) String() string {
	return k.UserID + "/" + k.AssociateID
}

// Field names one persisted piece of task state.
type Field int

const (
	FieldDestinationFilePath Field = iota
	FieldResumeData
	FieldResponse
	FieldResponseData
	FieldError
)

var fieldNames = [...]string{
	FieldDestinationFilePath: "destinationFilePath",
	FieldResumeData:          "resumeData",
	FieldResponse:            "response",
	FieldResponseData:        "responseData",
	FieldError:               "error",
}

// Fields lists every field in storage order.
func Fields() []Field {
	return []Field{FieldDestinationFilePath, FieldResumeData, FieldResponse, FieldResponseData, FieldError}
}

// String returns the on-disk file name of the field.
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// CachedInfo aggregates everything persisted for one task. A nil field was
// never written; an empty non-nil byte slice was written empty.
type CachedInfo struct {
	BackgroundSessionID string
	SessionTaskID       uint64

	DestinationFilePath *string
	ResumeData          []byte
	Response            *Response
	ResponseData        []byte
	Error               *TaskError
}

// Key returns the task's PrimaryKey.
func (c *CachedInfo) Key() PrimaryKey {
	return PrimaryKey{BackgroundSessionID: c.BackgroundSessionID, SessionTaskID: c.SessionTaskID}
}

// Response is the archivable part of a URL response received by a task.
type Response struct {
	URL                   string      `json:"url"`
	StatusCode            int         `json:"status_code"`
	Header                http.Header `json:"header,omitempty"`
	MIMEType              string      `json:"mime_type,omitempty"`
	ExpectedContentLength int64       `json:"expected_content_length"`
}

// ResponseFromHTTP captures status, headers and URL of r. The body is not
// touched; it is cached separately as response data.
func ResponseFromHTTP(r *http.Response) *Response {
	if r == nil {
		return nil
	}
	out := &Response{
		StatusCode:            r.StatusCode,
		Header:                r.Header.Clone(),
		MIMEType:              r.Header.Get("Content-Type"),
		ExpectedContentLength: r.ContentLength,
	}
	if r.Request != nil && r.Request.URL != nil {
		out.URL = r.Request.URL.String()
	}
	return out
}

// Error domains and codes used by AsTaskError.
const (
	DomainClient = "client"
	DomainURL    = "url"

	CodeUnknown   = -1
	CodeCancelled = -999
	CodeTimedOut  = -1001
)

// TaskError is the archivable form of a client-side error hit by a task.
type TaskError struct {
	Domain   string            `json:"domain"`
	Code     int               `json:"code"`
	Detail   string            `json:"detail,omitempty"`
	UserInfo map[string]string `json:"user_info,omitempty"`
}

func (e *TaskError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s error %d", e.Domain, e.Code)
	}
	return fmt.Sprintf("%s error %d: %s", e.Domain, e.Code, e.Detail)
}

// AsTaskError converts a transfer error into its archivable form. It returns
// nil for a nil error and err itself when it already is a *TaskError.
func AsTaskError(err error) *TaskError {
	if err == nil {
		return nil
	}
	var te *TaskError
	if errors.As(err, &te) {
		return te
	}

	out := &TaskError{Domain: DomainClient, Code: CodeUnknown, Detail: err.Error()}

	var ue *url.Error
	if errors.As(err, &ue) {
		out.Domain = DomainURL
		out.UserInfo = map[string]string{"op": ue.Op, "url": ue.URL}
		if ue.Timeout() {
			out.Code = CodeTimedOut
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		out.Code = CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		out.Code = CodeTimedOut
	}
	return out
}
