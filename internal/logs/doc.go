// Package logs reads the daemon's fallback log file for `upcased logs`.
//
// Last returns the final lines of the file with bounded memory, and Follow
// polls for appended lines until its context ends, restarting from the top
// when the file is truncated or replaced.
package logs
