package service

import (
	"encoding/json"
	"time"

	apperrors "qqbridge/internal/errors"
	"qqbridge/internal/models"
	"qqbridge/pkg/onebot"

	"github.com/sirupsen/logrus"
)

// Normalizer validates raw wire events and closes the open segment
// shape into the typed variant. It is stateless and safe for concurrent
// use from both transports.
type Normalizer struct {
	logger *logrus.Logger
}

func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize parses and classifies one raw event. Malformed payloads and
// unknown envelopes return an INVALID_EVENT error; the caller drops
// them without propagating into the transport loop.
func (n *Normalizer) Normalize(payload []byte) (*models.InboundEvent, error) {
	var raw onebot.RawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidEvent, "malformed event payload")
	}

	evt := &models.InboundEvent{Raw: payload}
	if ts, ok := onebot.AsInt64(raw.Time); ok && ts > 0 {
		evt.Time = time.Unix(ts, 0)
	} else {
		evt.Time = time.Now()
	}

	switch raw.EventType() {
	case "message":
	case "meta", "meta_event":
		evt.Kind = models.EventMeta
		return evt, nil
	case "notice", "request":
		evt.Kind = models.EventNotice
		return evt, nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeInvalidEvent, "unknown event type")
	}

	switch raw.MessageKind() {
	case "group":
		evt.Kind = models.EventGroupMessage
	case "private":
		evt.Kind = models.EventPrivateMessage
	default:
		return nil, apperrors.New(apperrors.ErrCodeInvalidEvent, "unsupported message detail type")
	}

	// Identifiers come first so the access filter can short-circuit
	// before any media work.
	evt.GroupID = onebot.AsString(raw.GroupID)
	evt.GroupName = raw.GroupName
	evt.UserID = onebot.AsString(raw.UserID)
	if raw.Sender != nil {
		if raw.Sender.Card != "" {
			evt.Nickname = raw.Sender.Card
		} else {
			evt.Nickname = raw.Sender.Nickname
		}
	}

	evt.Segments = n.decodeSegments(raw.Message, raw.RawMessage)
	return evt, nil
}

func (n *Normalizer) decodeSegments(message json.RawMessage, rawMessage string) []models.MessageSegment {
	if len(message) > 0 {
		var segments []onebot.RawSegment
		if err := json.Unmarshal(message, &segments); err == nil {
			out := make([]models.MessageSegment, 0, len(segments))
			for _, seg := range segments {
				out = append(out, closeSegment(seg))
			}
			return out
		}

		var text string
		if err := json.Unmarshal(message, &text); err == nil && text != "" {
			return []models.MessageSegment{{Type: models.SegmentText, Text: text}}
		}

		n.logger.WithField("message", string(message)).Debug("Unrecognized message shape, falling back to raw_message")
	}

	if rawMessage != "" {
		return []models.MessageSegment{{Type: models.SegmentText, Text: rawMessage}}
	}
	return nil
}

// closeSegment maps one open wire segment onto the closed variant.
// Unknown kinds become SegmentUnsupported so they surface as a
// placeholder instead of vanishing.
func closeSegment(seg onebot.RawSegment) models.MessageSegment {
	data := seg.Data
	switch seg.Type {
	case "text":
		return models.MessageSegment{Type: models.SegmentText, Text: onebot.DataString(data, "text")}
	case "image":
		return models.MessageSegment{
			Type:      models.SegmentImage,
			RemoteRef: firstNonEmpty(onebot.DataString(data, "url"), onebot.DataString(data, "file"), onebot.DataString(data, "file_id")),
		}
	case "record", "voice":
		return models.MessageSegment{
			Type:      models.SegmentVoice,
			RemoteRef: firstNonEmpty(onebot.DataString(data, "url"), onebot.DataString(data, "file"), onebot.DataString(data, "file_id")),
		}
	case "video":
		return models.MessageSegment{
			Type:      models.SegmentVideo,
			RemoteRef: firstNonEmpty(onebot.DataString(data, "url"), onebot.DataString(data, "file"), onebot.DataString(data, "file_id")),
		}
	case "file":
		return models.MessageSegment{
			Type:      models.SegmentFile,
			RemoteRef: firstNonEmpty(onebot.DataString(data, "url"), onebot.DataString(data, "file_id"), onebot.DataString(data, "file")),
			FileName:  onebot.DataString(data, "name"),
		}
	case "at", "mention":
		return models.MessageSegment{
			Type:      models.SegmentMention,
			MentionID: firstNonEmpty(onebot.DataString(data, "qq"), onebot.DataString(data, "user_id")),
		}
	case "reply":
		return models.MessageSegment{Type: models.SegmentReply, ReplyID: onebot.DataString(data, "id")}
	case "location":
		return models.MessageSegment{
			Type:      models.SegmentLocation,
			Latitude:  firstNonEmpty(onebot.DataString(data, "lat"), onebot.DataString(data, "latitude")),
			Longitude: firstNonEmpty(onebot.DataString(data, "lon"), onebot.DataString(data, "longitude")),
			Title:     onebot.DataString(data, "title"),
		}
	case "share":
		return models.MessageSegment{
			Type:  models.SegmentShare,
			Title: onebot.DataString(data, "title"),
			URL:   onebot.DataString(data, "url"),
		}
	default:
		return models.MessageSegment{Type: models.SegmentUnsupported, RawKind: seg.Type}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
