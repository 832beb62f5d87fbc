// Package hub fans the agent's activity feed out to dashboard websocket
// clients using a channel-based register/unregister/broadcast loop.
package hub

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an activity event.
type Kind string

const (
	KindToolCall   Kind = "tool_call"
	KindTranscript Kind = "transcript"
	KindStatus     Kind = "status"
	KindError      Kind = "error"
)

// Event is one entry of the activity feed.
type Event struct {
	ID     string                 `json:"id"`
	Kind   Kind                   `json:"kind"`
	Time   time.Time              `json:"time"`
	Tool   string                 `json:"tool,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Text   string                 `json:"text,omitempty"`
	Error  string                 `json:"error,omitempty"`
	Source string                 `json:"source,omitempty"` // "voice" or "dashboard"
}

// ToolCall builds the event recorded after a tool ran.
func ToolCall(source, tool string, args map[string]interface{}, result string, err error) Event {
	ev := Event{Kind: KindToolCall, Source: source, Tool: tool, Args: args, Text: result}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func (e *Event) stamp(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = now
	}
}
