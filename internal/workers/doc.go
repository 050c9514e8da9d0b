// Package workers holds the two ways the daemon serves connection requests:
// a goroutine per client (thread strategy) or a re-executed worker process
// per client (process strategy). Both run the same session logic.
//
// Worker processes are collected by Reaper, which waits on each tracked pid
// with WNOHANG whenever SIGCHLD arrives and on a slow periodic sweep.
package workers
