// Package client implements the Client that drives one esbuild service
// process.
//
// The Client owns a transport and a protocol controller. Transform sends a
// request and returns a Future immediately; any number of transforms may be
// outstanding and their responses arrive in any order. The controller answers
// keepalive pings on its own goroutine.
//
// Reference counting and sharing of a Client across callers lives in the root
// package; this package manages a single instance.
package client
