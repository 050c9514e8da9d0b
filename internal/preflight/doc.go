// Package preflight provides readiness checks for the filesystem paths
// upcase depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before creating the public FIFO and refuses
//     to start if any check fails.
//   - The "upcased status" command renders each result so an operator can
//     see why a daemon would not start.
package preflight
