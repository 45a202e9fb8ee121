// Package client contains client-side building blocks for DialKeeper.
//
// # Overview
//
// The package provides:
//  1. A transport contract for the platform API (see the Client interface):
//     basic-auth credential setup, raw GET, and the two typed endpoints the
//     session consumes (the system-user profile and the autologin token).
//  2. A concrete HTTP implementation (see HTTPClient) that validates payloads
//     at the boundary so only typed results reach the session manager.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations),
//     wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Non-2xx responses surface as *StatusError, which unwraps to ErrUnauthorized
// for 401/403 and ErrUnavailable for gateway errors. Transport failures wrap
// ErrUnavailable; undecodable payloads wrap ErrBadPayload.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All network operations accept a
// context.Context and honor cancellation.
package client
