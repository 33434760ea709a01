// Package errs defines the error shapes the API returns.
//
// Every failure a client sees is an HTTPError serialized to JSON, so the
// chat UI gets the same structure whether a thread is missing, a payload is
// malformed, or the store is down.
package errs
