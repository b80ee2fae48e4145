// Package cli defines the dropit command tree.
//
// Running dropit with no subcommand starts the TUI. The subcommands are
// one-shot operations against the same backend and local session:
//
//	dropit login -e demo@dropit.local
//	dropit markers nearby --at 37.5665,126.978 -r 2
//	dropit markers add --at 37.57,126.98 -d "next to the bus stop" -c shoes
//	dropit probe
//	dropit mock-server --addr 127.0.0.1:8080
//
// The --api-base, --data-dir and --log-level flags override the config file
// and DROPIT_* environment variables.
package cli
