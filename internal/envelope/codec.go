package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/soyeahso/slotchat/internal/domain"
)

// EncodeError reports an envelope that cannot be put on the wire.
// It always indicates a caller bug.
type EncodeError struct {
	Reason string
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("envelope: encode: %s: %v", e.Reason, e.Err)
	}
	return "envelope: encode: " + e.Reason
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a malformed inbound envelope. It is recoverable per
// message and must never tear down a connection.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("envelope: decode: %s: %v", e.Reason, e.Err)
	}
	return "envelope: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes an envelope to its JSON wire form.
func Encode(env Envelope) ([]byte, error) {
	switch e := env.(type) {
	case Chat:
		return encodeChat(e)
	case *Chat:
		if e == nil {
			return nil, &EncodeError{Reason: "nil envelope"}
		}
		return encodeChat(*e)
	case Unknown:
		if len(e.Raw) == 0 {
			return nil, &EncodeError{Reason: "unknown envelope without payload"}
		}
		return append([]byte(nil), e.Raw...), nil
	case nil:
		return nil, &EncodeError{Reason: "nil envelope"}
	default:
		return nil, &EncodeError{Reason: fmt.Sprintf("unsupported envelope %T", env)}
	}
}

func encodeChat(c Chat) ([]byte, error) {
	if c.ThreadID == "" {
		return nil, &EncodeError{Reason: "missing thread id"}
	}
	if c.Message.Content == "" {
		return nil, &EncodeError{Reason: "missing message content"}
	}
	msg, err := json.Marshal(c.Message)
	if err != nil {
		return nil, &EncodeError{Reason: "marshal message", Err: err}
	}
	data, err := json.Marshal(frame{
		Type:       string(KindChat),
		PurchaseID: c.ThreadID,
		Message:    msg,
	})
	if err != nil {
		return nil, &EncodeError{Reason: "marshal envelope", Err: err}
	}
	return data, nil
}

// Decode parses and structurally validates one inbound envelope. Unknown
// kinds decode to Unknown without error. Sender identity is not checked.
func Decode(data []byte) (Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{Reason: "invalid json", Err: err}
	}
	if f.Type == "" {
		return nil, &DecodeError{Reason: "missing type"}
	}

	if Kind(f.Type) != KindChat {
		return Unknown{Type: f.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if f.PurchaseID == "" {
		return nil, &DecodeError{Reason: "missing purchaseId"}
	}
	if len(f.Message) == 0 || bytes.Equal(bytes.TrimSpace(f.Message), []byte("null")) {
		return nil, &DecodeError{Reason: "missing message"}
	}

	var msg domain.Message
	if err := json.Unmarshal(f.Message, &msg); err != nil {
		return nil, &DecodeError{Reason: "invalid message", Err: err}
	}
	return Chat{ThreadID: f.PurchaseID, Message: msg}, nil
}
