// Package main hosts the upcase client.
//
// upcase announces a private FIFO pair on the daemon's public FIFO, streams
// its input (a file or stdin) through the daemon one chunk at a time, and
// prints the uppercased replies. Both private FIFOs are removed on every
// exit path, including SIGINT, SIGTERM, SIGHUP and SIGQUIT.
package main
