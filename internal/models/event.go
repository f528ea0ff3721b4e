package models

import "time"

// EventKind classifies a normalized wire event.
type EventKind string

const (
	EventGroupMessage   EventKind = "group"
	EventPrivateMessage EventKind = "private"
	EventMeta           EventKind = "meta"
	EventNotice         EventKind = "notice"
)

// SegmentType tags one unit of a composite chat message. Unknown wire
// kinds map to SegmentUnsupported rather than being dropped.
type SegmentType string

const (
	SegmentText        SegmentType = "text"
	SegmentImage       SegmentType = "image"
	SegmentMention     SegmentType = "mention"
	SegmentReply       SegmentType = "reply"
	SegmentVoice       SegmentType = "voice"
	SegmentVideo       SegmentType = "video"
	SegmentFile        SegmentType = "file"
	SegmentLocation    SegmentType = "location"
	SegmentShare       SegmentType = "share"
	SegmentUnsupported SegmentType = "unsupported"
)

// MessageSegment is the closed variant over wire segment kinds. Each
// variant uses only the fields it needs.
type MessageSegment struct {
	Type SegmentType

	Text string // text

	// image / voice / video / file: either a direct URL or an opaque
	// file_id to be resolved through the bot implementation's file API
	RemoteRef string
	FileName  string

	MentionID string // mention (OneBot "at")
	ReplyID   string // reply

	Latitude  string // location
	Longitude string
	Title     string // location, share
	URL       string // share

	RawKind string // unsupported: the original wire type
}

// IsMedia reports whether the segment carries a downloadable reference.
func (s MessageSegment) IsMedia() bool {
	switch s.Type {
	case SegmentImage, SegmentVoice, SegmentVideo, SegmentFile:
		return s.RemoteRef != ""
	}
	return false
}

// InboundEvent is a validated, classified wire event. Raw keeps the
// original payload for diagnostics only.
type InboundEvent struct {
	Kind       EventKind
	Time       time.Time
	GroupID    string
	GroupName  string
	UserID     string
	Nickname   string
	Segments   []MessageSegment
	Raw        []byte
}

// Message reports whether the event should flow through the pipeline.
func (e *InboundEvent) Message() bool {
	return e.Kind == EventGroupMessage || e.Kind == EventPrivateMessage
}
