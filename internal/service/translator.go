package service

import (
	"context"
	"fmt"
	"strings"

	"qqbridge/internal/models"
	"qqbridge/pkg/media"

	"github.com/sirupsen/logrus"
)

// Translator renders the ordered segment list into a notification
// draft, resolving media references along the way. Resolution failures
// degrade individual segments to placeholders; they never fail the
// draft.
type Translator struct {
	resolver    media.Resolver
	titlePrefix string
	logger      *logrus.Logger
}

func NewTranslator(resolver media.Resolver, titlePrefix string, logger *logrus.Logger) *Translator {
	return &Translator{
		resolver:    resolver,
		titlePrefix: titlePrefix,
		logger:      logger,
	}
}

func (t *Translator) Translate(ctx context.Context, evt *models.InboundEvent) *models.NotificationDraft {
	var body strings.Builder
	var links []string

	for _, seg := range evt.Segments {
		switch seg.Type {
		case models.SegmentText:
			body.WriteString(seg.Text)
		case models.SegmentMention:
			body.WriteString("@" + seg.MentionID)
		case models.SegmentReply:
			body.WriteString("[reply:" + seg.ReplyID + "]")
		case models.SegmentLocation:
			body.WriteString(renderLocation(seg))
		case models.SegmentShare:
			body.WriteString(renderShare(seg))
		case models.SegmentImage, models.SegmentVoice, models.SegmentVideo, models.SegmentFile:
			body.WriteString(t.renderMedia(ctx, seg, &links))
		case models.SegmentUnsupported:
			body.WriteString("[" + seg.RawKind + "]")
		}
	}

	draft := &models.NotificationDraft{
		Title: t.buildTitle(evt),
		Body:  body.String(),
	}

	// One resolved asset becomes the single clickable link and is not
	// repeated in the attachment list; with more, everything is listed
	// and the first still gets promoted.
	switch len(links) {
	case 0:
	case 1:
		draft.PrimaryLink = links[0]
	default:
		draft.PrimaryLink = links[0]
		draft.Attachments = links
	}

	if draft.Body == "" && draft.Title == "" {
		draft.Body = "(empty message)"
	}

	return draft
}

func (t *Translator) renderMedia(ctx context.Context, seg models.MessageSegment, links *[]string) string {
	label := mediaLabel(seg.Type)
	if seg.RemoteRef == "" {
		return "[" + label + "]"
	}

	asset, err := t.resolver.Resolve(ctx, seg)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"ref":   seg.RemoteRef,
			"error": err.Error(),
		}).Warn("Media resolution failed, degrading to placeholder")
		return "[" + label + " unavailable]"
	}

	*links = append(*links, asset.PublicLink)
	return "[" + label + "]"
}

func (t *Translator) buildTitle(evt *models.InboundEvent) string {
	sender := evt.Nickname
	if sender == "" {
		sender = evt.UserID
	}

	if evt.Kind == models.EventGroupMessage {
		group := evt.GroupName
		if group == "" {
			group = evt.GroupID
		}
		return fmt.Sprintf("%s #%s @%s", t.titlePrefix, group, sender)
	}
	return fmt.Sprintf("%s @%s", t.titlePrefix, sender)
}

func renderLocation(seg models.MessageSegment) string {
	s := seg.Latitude + "," + seg.Longitude
	if seg.Title != "" {
		s += " " + seg.Title
	}
	return s
}

func renderShare(seg models.MessageSegment) string {
	if seg.Title == "" {
		return seg.URL
	}
	if seg.URL == "" {
		return seg.Title
	}
	return seg.Title + ": " + seg.URL
}

func mediaLabel(segType models.SegmentType) string {
	switch segType {
	case models.SegmentImage:
		return "image"
	case models.SegmentVoice:
		return "voice"
	case models.SegmentVideo:
		return "video"
	case models.SegmentFile:
		return "file"
	}
	return "media"
}
