// Package client is the remote access layer for the taski REST service.
//
// Each method performs exactly one HTTP round trip through a circuit
// breaker. There are no retries, batching or caching. Failures are returned
// as *Error, which classifies under errors.Is as types.ErrNotFound (404),
// types.ErrInvalidData (400) or types.ErrTransport (anything else,
// including network failures and an open breaker).
package client
