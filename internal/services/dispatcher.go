package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	"bantay-backend/pkg/metrics"
	"bantay-backend/pkg/sms"
)

var errNoConnection = errors.New("recipient has no open realtime connection")

type DispatcherDeps struct {
	Alerts      AlertStore
	Deliveries  DeliveryStore
	SMS         SMSSender
	Email       AlertMailer
	Broadcaster Broadcaster
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Location    *time.Location
	Now         func() time.Time
}

// Dispatcher delivers a published alert over every enabled channel. Each
// recipient is attempted once; a failure is recorded on that recipient's
// delivery and never stops the rest of the loop.
type Dispatcher struct {
	alerts     AlertStore
	deliveries DeliveryStore
	sms        SMSSender
	email      AlertMailer
	hub        Broadcaster
	metrics    *metrics.Metrics
	logger     *zap.Logger
	loc        *time.Location
	now        func() time.Time
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Dispatcher{
		alerts:     deps.Alerts,
		deliveries: deps.Deliveries,
		sms:        deps.SMS,
		email:      deps.Email,
		hub:        deps.Broadcaster,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		loc:        deps.Location,
		now:        deps.Now,
	}
}

type ChannelReport struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	// Reached counts live connections for room broadcasts.
	Reached int `json:"reached,omitempty"`
}

// DispatchReport summarises one dispatch run per channel.
type DispatchReport map[string]ChannelReport

// sendFunc attempts one recipient on a channel.
type sendFunc func(ctx context.Context, r models.Recipient) error

// channelRun is one per-recipient channel with a configured transport.
type channelRun struct {
	channel    string
	recipients []recipientContact
	send       sendFunc
}

// Dispatch runs every enabled channel in turn and returns what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert, recipients []models.Recipient) DispatchReport {
	report := DispatchReport{}
	log := d.logger.With(zap.String("alert_id", alert.AlertID))

	for _, run := range d.channelRuns(alert, recipients) {
		start := d.now()
		channelReport := d.deliver(ctx, alert, run.channel, run.recipients, run.send)
		d.finishChannel(ctx, alert, run.channel, channelReport, start)
		report[run.channel] = channelReport
	}
	if d.hub != nil && alert.Channels.Web.Enabled {
		report[models.ChannelWeb] = d.web(ctx, alert)
	}

	log.Info("dispatch finished", zap.Any("report", report))
	return report
}

// Abandon records every per-recipient delivery as failed with cause. It is
// used when a dispatch could not be started, so the alert still carries an
// outcome for each recipient. Channel flags and counters are left untouched.
func (d *Dispatcher) Abandon(ctx context.Context, alert *models.Alert, recipients []models.Recipient, cause error) DispatchReport {
	report := DispatchReport{}
	fail := func(context.Context, models.Recipient) error { return cause }
	for _, run := range d.channelRuns(alert, recipients) {
		report[run.channel] = d.deliver(ctx, alert, run.channel, run.recipients, fail)
	}
	d.logger.Warn("dispatch abandoned",
		zap.String("alert_id", alert.AlertID), zap.Any("report", report), zap.Error(cause))
	return report
}

func (d *Dispatcher) channelRuns(alert *models.Alert, recipients []models.Recipient) []channelRun {
	var runs []channelRun
	log := d.logger.With(zap.String("alert_id", alert.AlertID))

	if alert.Channels.SMS.Enabled {
		if d.sms == nil {
			log.Warn("sms channel enabled but no sender configured")
		} else {
			text := sms.FormatAlert(alert.Title, alert.Message)
			runs = append(runs, channelRun{
				channel:    models.ChannelSMS,
				recipients: withContact(recipients, func(r models.Recipient) string { return r.PhoneNumber }),
				send: func(ctx context.Context, r models.Recipient) error {
					return d.sms.Send(ctx, r.PhoneNumber, text)
				},
			})
		}
	}

	if alert.Channels.Email.Enabled {
		if d.email == nil {
			log.Warn("email channel enabled but no mailer configured")
		} else {
			runs = append(runs, channelRun{
				channel:    models.ChannelEmail,
				recipients: withContact(recipients, func(r models.Recipient) string { return r.Email }),
				send: func(ctx context.Context, r models.Recipient) error {
					return d.email.SendAlertEmail(ctx, r.Email, alert, d.loc)
				},
			})
		}
	}

	if d.hub != nil && alert.Channels.Push.Enabled {
		runs = append(runs, channelRun{
			channel:    models.ChannelPush,
			recipients: withContact(recipients, func(r models.Recipient) string { return r.UserID.Hex() }),
			send: func(ctx context.Context, r models.Recipient) error {
				if d.hub.BroadcastToRoom(UserRoom(r.UserID), EventAlertNew, alert) == 0 {
					return errNoConnection
				}
				return nil
			},
		})
	}
	return runs
}

// deliver records a pending delivery for every recipient, attempts each send
// once and marks the outcome.
func (d *Dispatcher) deliver(ctx context.Context, alert *models.Alert, channel string, recipients []recipientContact, send sendFunc) ChannelReport {
	report := ChannelReport{}
	if len(recipients) == 0 {
		return report
	}
	log := d.logger.With(zap.String("alert_id", alert.AlertID), zap.String("channel", channel))

	createdAt := d.now()
	deliveries := make([]*models.Delivery, len(recipients))
	for i, rc := range recipients {
		deliveries[i] = &models.Delivery{
			ID:        primitive.NewObjectID(),
			AlertID:   alert.ID,
			Channel:   channel,
			UserID:    rc.UserID,
			Recipient: rc.contact,
			Status:    models.DeliveryPending,
			CreatedAt: createdAt,
		}
	}
	// An unordered insert can fail part way, so results are still written
	// for the rows that made it.
	insertErr := d.deliveries.InsertPending(ctx, deliveries)
	if insertErr != nil {
		log.Error("failed to record pending deliveries", zap.Error(insertErr))
	}

	missing := 0
	for i, rc := range recipients {
		report.Attempted++
		status, errMsg := models.DeliverySent, ""
		if err := d.attempt(ctx, send, rc.Recipient); err != nil {
			status, errMsg = models.DeliveryFailed, err.Error()
			report.Failed++
			log.Warn("delivery failed", zap.String("user_id", rc.UserID.Hex()), zap.Error(err))
		} else {
			report.Sent++
		}
		d.metrics.NotificationSent(channel, status)

		if err := d.deliveries.MarkResult(ctx, deliveries[i].ID, status, errMsg, d.now()); err != nil {
			if insertErr != nil && errors.Is(err, repository.ErrNotFound) {
				missing++
				continue
			}
			log.Error("failed to record delivery result",
				zap.String("delivery_id", deliveries[i].ID.Hex()), zap.Error(err))
		}
	}
	if missing > 0 {
		log.Warn("delivery outcomes not recorded", zap.Int("missing", missing), zap.Int("attempted", report.Attempted))
	}
	return report
}

// finishChannel bumps the channel counter in one increment and flags the channel sent.
func (d *Dispatcher) finishChannel(ctx context.Context, alert *models.Alert, channel string, report ChannelReport, start time.Time) {
	if report.Attempted == 0 {
		return
	}
	if err := d.alerts.IncrementStat(ctx, alert.ID, channel, int64(report.Sent)); err != nil {
		d.logger.Error("failed to update alert statistics", zap.String("alert_id", alert.AlertID), zap.Error(err))
	}
	if err := d.alerts.MarkChannelSent(ctx, alert.ID, channel, d.now()); err != nil {
		d.logger.Error("failed to mark channel sent", zap.String("alert_id", alert.AlertID), zap.Error(err))
	}
	d.metrics.ObserveDispatch(channel, d.now().Sub(start))
}

// attempt isolates one send so a panicking transport only fails its recipient.
func (d *Dispatcher) attempt(ctx context.Context, send sendFunc, r models.Recipient) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("transport panicked")
			d.logger.Error("send panicked", zap.Any("panic", p))
		}
	}()
	return send(ctx, r)
}

// web broadcasts once to the barangay display room. The channel counts as
// sent only when a display was connected to receive it.
func (d *Dispatcher) web(ctx context.Context, alert *models.Alert) ChannelReport {
	start := d.now()
	reached := d.hub.BroadcastToRoom(RoomBarangay, EventAlertNew, alert)
	report := ChannelReport{Attempted: 1, Reached: reached}
	status := models.DeliverySent
	if reached > 0 {
		report.Sent = 1
	} else {
		report.Failed = 1
		status = models.DeliveryFailed
	}
	d.metrics.NotificationSent(models.ChannelWeb, status)

	if err := d.alerts.MarkChannelSent(ctx, alert.ID, models.ChannelWeb, d.now()); err != nil {
		d.logger.Error("failed to mark web channel sent", zap.String("alert_id", alert.AlertID), zap.Error(err))
	}
	d.metrics.ObserveDispatch(models.ChannelWeb, d.now().Sub(start))
	d.logger.Debug("web display broadcast", zap.String("alert_id", alert.AlertID), zap.Int("connections", reached))
	return report
}

type recipientContact struct {
	models.Recipient
	contact string
}

// withContact drops recipients that lack the contact point a channel needs.
func withContact(recipients []models.Recipient, contact func(models.Recipient) string) []recipientContact {
	out := make([]recipientContact, 0, len(recipients))
	for _, r := range recipients {
		if c := contact(r); c != "" {
			out = append(out, recipientContact{Recipient: r, contact: c})
		}
	}
	return out
}
