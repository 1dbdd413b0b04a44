package websocket

import "github.com/smilemakc/avtrace/internal/domain"

// WSEvent is one message pushed to subscribed clients: a single
// DecisionLog entry produced while a run is in progress.
type WSEvent struct {
	Type  string             `json:"type"`
	RunID string             `json:"run_id"`
	Entry domain.DecisionLog `json:"entry"`
}

// NewDecisionEvent wraps a DecisionLog entry for broadcast.
func NewDecisionEvent(runID string, entry domain.DecisionLog) *WSEvent {
	return &WSEvent{Type: "decision_log", RunID: runID, Entry: entry}
}

// Command actions a client may send after connecting.
const (
	CmdSubscribe   = "subscribe"
	CmdUnsubscribe = "unsubscribe"
)

// WSCommand is a client-to-server control message.
type WSCommand struct {
	Action string `json:"action"`
	RunID  string `json:"run_id"`
}

// WSResponse acknowledges a WSCommand.
type WSResponse struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewSuccessResponse(action, message string) *WSResponse {
	return &WSResponse{Type: "response", Action: action, OK: true, Message: message}
}

func NewErrorResponse(action, message string) *WSResponse {
	return &WSResponse{Type: "response", Action: action, OK: false, Message: message}
}
