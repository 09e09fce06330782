// Package respcache is the per-user lookaside cache for ordinary API
// responses.
//
// A Store is bound to one user id. It is consulted before a request is sent
// (Fetch/Lookup) and updated after a successful one (Update). It never
// reports errors: any storage or decoding failure is logged and behaves as a
// cache miss, so a broken cache can only make requests slower, never fail
// them. ClearForLogout wipes the user's namespace when the session ends.
//
// Entries live in the SQLite table response_cache, keyed by
// (user_id, cache_key). OpenDatabase opens the database and applies the
// embedded goose migrations.
package respcache
