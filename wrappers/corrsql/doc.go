// Package corrsql wraps `database.sql` to emit one event per DB call.
//
// After opening a DB connection, replace the *sql.DB object with a
// *corrsql.DB object. The *corrsql.DB struct implements all the same
// functions as the normal *sql.DB struct, and emits an event with details
// about the SQL call made.
//
// Additionally, if corrsql is used in conjunction with one of the HTTP
// wrappers *and* you use the context-aware version of the DB calls, the trace
// ID picked up in the HTTP event will appear in the SQL event to allow easy
// identification of what HTTP call triggers which SQL calls.
//
// It is strongly suggested that you use the context-aware version of all calls
// whenever possible; doing so not only lets you cancel your database calls, but
// dramatically increases the value of the SQL instrumentation by letting you
// tie it back to individual HTTP requests.
package corrsql
