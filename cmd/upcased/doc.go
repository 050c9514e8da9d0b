// Package main hosts the upcased daemon entrypoint and its control commands.
//
// Invoked without a subcommand, upcased detaches from the terminal (unless
// --foreground is given), owns the public FIFO, and serves clients with the
// configured worker strategy. The stop and status subcommands inspect the
// running instance through its lock and pid files. The hidden worker
// subcommand is what the process strategy executes for each client.
package main
