package session

// State names a step of a worker's conversation with one client.
type State string

const (
	StateAwaitClientWriter  State = "await_client_writer"
	StateReadingChunk       State = "reading_chunk"
	StateOpeningReply       State = "opening_reply_channel"
	StateWritingReply       State = "writing_reply"
	StateClientEOF          State = "client_eof"
	StateTerminated         State = "terminated"
	StateOpenRetryExhausted State = "open_retry_exhausted"
	StateBrokenPipe         State = "broken_pipe_on_write"
)
