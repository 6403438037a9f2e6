// Package envelope defines the chat wire format and its codec.
package envelope

import (
	"encoding/json"

	"github.com/soyeahso/slotchat/internal/domain"
)

// Kind discriminates envelope variants on the wire ("type" field).
type Kind string

// KindChat is the only kind currently defined.
const KindChat Kind = "chat"

// Envelope is one wire-transmitted unit. The set of implementations is closed
// to this package: Chat and Unknown.
type Envelope interface {
	Kind() Kind
	isEnvelope()
}

// Chat carries one message for one purchase thread.
type Chat struct {
	ThreadID string
	Message  domain.Message
}

// NewChat builds a chat envelope.
func NewChat(threadID string, msg domain.Message) Chat {
	return Chat{ThreadID: threadID, Message: msg}
}

func (Chat) Kind() Kind { return KindChat }
func (Chat) isEnvelope() {}

// Unknown is an envelope whose kind this build does not understand.
// It is preserved so it can be logged and skipped.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (u Unknown) Kind() Kind { return Kind(u.Type) }
func (Unknown) isEnvelope()  {}

// frame is the JSON shape shared by every kind.
type frame struct {
	Type       string          `json:"type"`
	PurchaseID string          `json:"purchaseId,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
}
