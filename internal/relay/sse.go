package relay

import "fmt"

// Event names recognized by relay clients. token carries incremental
// content the client appends; message is a full reply the client replaces
// its placeholder with; error and done are terminal.
const (
	EventToken   = "token"
	EventMessage = "message"
	EventError   = "error"
	EventDone    = "done"
)

// formatEvent frames a single SSE event: an event line, an optional data
// line, and a blank line terminator.
func formatEvent(event, data string) []byte {
	if data == "" {
		return []byte(fmt.Sprintf("event: %s\n\n", event))
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
}
