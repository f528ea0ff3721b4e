package service

import (
	"context"

	apperrors "qqbridge/internal/errors"
	"qqbridge/internal/models"
	"qqbridge/internal/status"
	"qqbridge/pkg/notify"

	"github.com/sirupsen/logrus"
)

// Dispatcher hands finished drafts to the delivery abstraction bound to
// the configured target. Failures are reported, never retried here;
// retry policy belongs to the delivery platform.
type Dispatcher struct {
	client  notify.Client
	cfg     models.NotifyConfig
	tracker *status.Tracker
	logger  *logrus.Logger
}

func NewDispatcher(client notify.Client, cfg models.NotifyConfig, tracker *status.Tracker, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		client:  client,
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, draft *models.NotificationDraft) error {
	var err error
	switch d.cfg.TargetType {
	case "router":
		err = d.client.SendByRouter(ctx, d.cfg.BindRouter, *draft)
	case "channel":
		err = d.client.SendByChannel(ctx, d.cfg.BindChannel, *draft)
	default:
		err = apperrors.New(apperrors.ErrCodeInvalidConfig, "invalid target type: "+d.cfg.TargetType)
	}

	d.tracker.RecordDispatch(err)

	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"target": d.cfg.TargetType,
			"error":  err.Error(),
		}).Error("Dispatch failed")
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"target": d.cfg.TargetType,
		"title":  draft.Title,
	}).Info("Notification dispatched")
	return nil
}
