package relay

import (
	"encoding/json"

	"github.com/mistapp/backend/internal/models"
)

// Frame types
const (
	FrameInit    = "init"
	FrameMessage = "message"
	FrameError   = "error"
)

// inbound is any frame a client sends. Init accepts both the sender/receiver
// and from_user/to_user spellings.
type inbound struct {
	Type     string `json:"type"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Token    string `json:"token"`
	Body     string `json:"body"`
}

func (f *inbound) sender() string {
	if f.Sender != "" {
		return f.Sender
	}
	return f.FromUser
}

func (f *inbound) receiver() string {
	if f.Receiver != "" {
		return f.Receiver
	}
	return f.ToUser
}

func parseFrame(data []byte) (*inbound, error) {
	var f inbound
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Outbound frames

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type initFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type messageFrame struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

func newError(msg string) errorFrame {
	return errorFrame{Type: FrameError, Error: msg}
}
