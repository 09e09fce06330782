// Package taskcache persists the partial state of background upload and
// download tasks so it survives process suspension or termination.
//
// # Layout
//
// A Store owns a root directory:
//
//	{root}/sessions/{backgroundSessionId}/{sessionTaskId}/destinationFilePath
//	{root}/sessions/{backgroundSessionId}/{sessionTaskId}/resumeData
//	{root}/sessions/{backgroundSessionId}/{sessionTaskId}/response
//	{root}/sessions/{backgroundSessionId}/{sessionTaskId}/responseData
//	{root}/sessions/{backgroundSessionId}/{sessionTaskId}/error
//	{root}/users/{userId}/{associateId}
//	{root}/locks/{sha256}.lock
//
// Each field lives in its own file and is replaced atomically (temp file and
// rename). The users/ marker is the index record; its content is
// "{backgroundSessionId}-{sessionTaskId}".
//
// # Indexing
//
// A task is identified by a PrimaryKey (background session id, session task
// id). Callers resuming after relaunch usually only know the SecondaryKey
// they chose when the task started (user id, associate id), so RecordIndex
// maps the latter to the former and Fetch resolves it.
//
// # Concurrency
//
// Reads and writes of one PrimaryKey are serialized by an exclusive lock that
// combines an in-process mutex with a file lock, so Delete never interleaves
// with a field write even across Store instances sharing a root. Distinct
// PrimaryKeys never contend.
//
// # Errors
//
// Operations return errors wrapping the sentinels in internal/common:
// ErrInvalidArgument, ErrIOFailure, ErrNotFound and ErrSerialization.
package taskcache
