package domain

import (
	"encoding/json"
	"time"
)

// Role classifies the author of a chat message.
type Role string

const (
	RoleConsumer   Role = "consumer"
	RolePublisher  Role = "publisher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Roles lists every known role.
var Roles = []Role{RoleConsumer, RolePublisher, RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin reports whether r is an administrative role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// TimestampLayout is the wire format for message timestamps (ISO-8601, UTC, millis).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Message is one chat line inside a purchase thread.
type Message struct {
	Sender     string    `json:"sender"`
	SenderRole Role      `json:"senderRole"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// NewMessage builds a message authored by id, stamped with the current time.
func NewMessage(id Identity, content string) Message {
	return Message{
		Sender:     id.ID,
		SenderRole: id.Role,
		Content:    content,
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Key identifies a message for de-duplication between history and live delivery.
func (m Message) Key() string {
	return m.Sender + "|" + m.Timestamp.UTC().Format(TimestampLayout) + "|" + m.Content
}

type messageJSON struct {
	Sender     string `json:"sender"`
	SenderRole Role   `json:"senderRole"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
	Read       bool   `json:"read"`
}

// MarshalJSON encodes the timestamp with millisecond precision in UTC.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		Sender:     m.Sender,
		SenderRole: m.SenderRole,
		Content:    m.Content,
		Timestamp:  m.Timestamp.UTC().Format(TimestampLayout),
		Read:       m.Read,
	})
}

// UnmarshalJSON accepts any RFC 3339 timestamp. An empty timestamp leaves the zero time.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ts time.Time
	if raw.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
		if err != nil {
			return err
		}
		ts = parsed
	}
	*m = Message{
		Sender:     raw.Sender,
		SenderRole: raw.SenderRole,
		Content:    raw.Content,
		Timestamp:  ts,
		Read:       raw.Read,
	}
	return nil
}
