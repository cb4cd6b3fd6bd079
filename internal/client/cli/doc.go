// Package cli provides the interactive CatchDex command-line client.
//
// It wires configuration, local storage, the remote gateway, the
// reachability monitor, and the sync manager into an interactive REPL that
// works the same online and offline: catches land in the local store first
// and replay to the server when it is reachable.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
