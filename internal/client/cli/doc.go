// Package cli provides the interactive catalog command-line client.
//
// It wires configuration, the local store, the sync engine and a
// connectivity monitor behind a REPL that works the same online and
// offline: every change is staged locally first and pushed by the engine
// whenever the server is reachable.
//
// Commands:
//   - list [page] [filter]        show one page of products
//   - show <id|#>                 print one listed product and its image refs
//   - add [name=... brand=...]    stage a new product
//   - edit <id|#> [field=value]   stage changes to a product
//   - delete <id|#>               stage a delete
//   - sync [--retry]              push queued changes now
//   - categories, status, help, exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
