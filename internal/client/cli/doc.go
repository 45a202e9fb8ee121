// Package cli is the interactive front-end of dialkeeper.
//
// App wires the local database, the state store, the identity provider, the
// platform API client, the event bus, the call service and the session
// manager. Commands typed into the REPL are turned into bus events (login,
// logout, unlock, update-token) or direct manager calls (lock), and
// notifications published by the manager are printed as they arrive.
//
// See NewApp, App.Run and runREPL for details.
package cli
