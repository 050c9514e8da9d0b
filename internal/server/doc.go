// Package server runs the daemon's request loop on the public FIFO.
//
// The server opens the FIFO for reading without blocking and keeps its own
// writer open so an idle FIFO never reports end of file. Each fixed-size
// connection request is validated and handed to a workers.Strategy; invalid
// requests are logged and dropped without affecting other clients.
package server
