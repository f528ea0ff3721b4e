package service

import (
	"context"

	"qqbridge/internal/models"
	"qqbridge/internal/status"
	"qqbridge/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Bridge is the single normalizer entry point both transports feed.
// It is safe under concurrent invocation: the stages are stateless and
// the tracker synchronizes its own state.
type Bridge struct {
	normalizer *Normalizer
	filter     *AccessFilter
	translator *Translator
	dispatcher *Dispatcher
	tracker    *status.Tracker
	logger     *logrus.Logger
}

func NewBridge(normalizer *Normalizer, filter *AccessFilter, translator *Translator, dispatcher *Dispatcher, tracker *status.Tracker, logger *logrus.Logger) *Bridge {
	return &Bridge{
		normalizer: normalizer,
		filter:     filter,
		translator: translator,
		dispatcher: dispatcher,
		tracker:    tracker,
		logger:     logger,
	}
}

// HandleRaw runs one raw payload through the full pipeline. Malformed
// and filtered events are dropped with a counted reason and a nil
// return; only a dispatch failure propagates to the caller.
func (b *Bridge) HandleRaw(ctx context.Context, payload []byte) error {
	ctx, span := tracing.StartSpan(ctx, "bridge.handle_raw")
	defer span.End()

	b.tracker.RecordMessage()

	evt, err := b.normalizer.Normalize(payload)
	if err != nil {
		b.tracker.RecordError(err)
		b.logger.WithField("error", err.Error()).Debug("Dropping malformed event")
		tracing.RecordError(ctx, err)
		return nil
	}

	if !evt.Message() {
		b.logger.WithField("kind", string(evt.Kind)).Debug("Skipping non-message event")
		return nil
	}

	tracing.AddSpanAttributes(ctx,
		attribute.String("event.kind", string(evt.Kind)),
		attribute.String("event.group_id", evt.GroupID),
	)

	if !b.filter.Allowed(evt) {
		b.tracker.RecordRejected()
		b.logger.WithFields(logrus.Fields{
			"group_id": evt.GroupID,
			"user_id":  evt.UserID,
		}).Debug("Event rejected by access filter")
		return nil
	}

	draft := b.translator.Translate(ctx, evt)
	return b.dispatcher.Dispatch(ctx, draft)
}

// Dispatch exposes the dispatcher for the operator test endpoints.
func (b *Bridge) Dispatch(ctx context.Context, draft *models.NotificationDraft) error {
	return b.dispatcher.Dispatch(ctx, draft)
}
