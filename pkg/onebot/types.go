package onebot

import (
	"encoding/json"
	"strings"
)

// RawEvent is the wire envelope as received from the bot
// implementation. OneBot 12 uses type/detail_type; OneBot 11
// implementations still in the wild use post_type/message_type, so both
// sets of fields are decoded and reconciled by the normalizer.
type RawEvent struct {
	Type       string `json:"type"`
	DetailType string `json:"detail_type"`

	PostType      string `json:"post_type"`
	MessageType   string `json:"message_type"`
	MetaEventType string `json:"meta_event_type"`

	Time       json.RawMessage `json:"time"`
	GroupID    json.RawMessage `json:"group_id"`
	UserID     json.RawMessage `json:"user_id"`
	GroupName  string          `json:"group_name"`
	Sender     *RawSender      `json:"sender"`
	Message    json.RawMessage `json:"message"`
	RawMessage string          `json:"raw_message"`
}

// RawSender carries the sender block of a message event.
type RawSender struct {
	UserID   json.RawMessage `json:"user_id"`
	Nickname string          `json:"nickname"`
	Card     string          `json:"card"`
}

// RawSegment is one unit of the ordered message array. Data is an open
// map on the wire; the normalizer closes it into a typed variant.
type RawSegment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// EventType returns the envelope's event classification, preferring the
// OneBot 12 field.
func (e *RawEvent) EventType() string {
	if e.Type != "" {
		return e.Type
	}
	return e.PostType
}

// MessageKind returns group/private for message events, preferring the
// OneBot 12 detail_type.
func (e *RawEvent) MessageKind() string {
	if e.DetailType != "" {
		return e.DetailType
	}
	return e.MessageType
}

// AsString decodes a wire value that may arrive as a JSON number or a
// JSON string. Numeric IDs are common with OneBot 11 implementations.
func AsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// AsInt64 decodes a wire value that may arrive as a JSON number or a
// JSON string containing digits.
func AsInt64(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var parsed int64
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// DataString extracts a string field from an open segment data map,
// tolerating numeric values.
func DataString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}
