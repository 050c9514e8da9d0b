// Package logging builds the slog loggers used by the upcase client and
// daemon.
//
// Console output is a human-oriented layout with the component and session
// pulled into the header line; JSON output renames the standard keys to
// ts/level/msg. Detached daemons log to syslog and fall back to a file in
// the state directory. Shared field names (component, session_id, state,
// event_type, error_hint, impact) live here so every package tags records
// the same way.
package logging
