package alerter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/internal/models"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/httpclient"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/isafetyrobo/safety-agent/pkg/metrics"
	"github.com/samber/lo"
)

const DefaultHighSeverityInterval = time.Hour

// Payload is the JSON body posted to the alert webhook.
type Payload struct {
	AlertID       string     `json:"alert_id"`
	IncidentID    int64      `json:"incident_id"`
	EventID       string     `json:"event_id"`
	Severity      string     `json:"severity"`
	Status        string     `json:"status"`
	Zone          string     `json:"zone"`
	DetectionType string     `json:"detection_type"`
	Label         string     `json:"label"`
	ImageURL      string     `json:"image_url"`
	DetectedAt    *time.Time `json:"detected_at"`
}

type Notifier interface {
	Notify(ctx context.Context, payload *Payload) error
}

// WebhookNotifier posts alerts as JSON to a fixed URL.
type WebhookNotifier struct {
	client *httpclient.Client
}

func NewWebhookNotifier(conf *httpclient.HTTPClientConf, webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		client: httpclient.NewClient(conf, webhookURL, ""),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, payload *Payload) error {
	return n.client.PostJSON(ctx, "", payload, nil)
}

// Store records sent alerts so that a restarted agent does not repeat them.
type Store interface {
	CreateAlert(alert *models.Alert) (*models.Alert, error)
	AlertExists(incidentID int64) (bool, error)
	LatestAlertForZone(zone, severity string) (*models.Alert, error)
}

// Alerter pushes newly seen incidents out of band: CRITICAL incidents
// immediately, HIGH incidents at most once per zone per interval.
type Alerter struct {
	Notifier Notifier
	Store    Store
	Logger   *logger.Logger
	Metrics  *metrics.Metrics

	HighSeverityInterval time.Duration

	// pending holds incidents whose alert failed, retried on every update
	pending map[int64]incident.Record

	now func() time.Time
}

func New(notifier Notifier, store Store, l *logger.Logger, m *metrics.Metrics) *Alerter {
	return &Alerter{
		Notifier:             notifier,
		Store:                store,
		Logger:               l,
		Metrics:              m,
		HighSeverityInterval: DefaultHighSeverityInterval,
		pending:              make(map[int64]incident.Record),
		now:                  time.Now,
	}
}

// Run alerts on the records added by every feed update until updates is
// closed or ctx is done. The update that seeds an empty cache carries the
// backlog and is not alerted on. Failed alerts are retried on the next
// update for as long as the incident stays in the snapshot.
func (a *Alerter) Run(ctx context.Context, updates <-chan feed.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}

			a.handleUpdate(ctx, u)
		}
	}
}

func (a *Alerter) handleUpdate(ctx context.Context, u feed.Update) {
	a.retryPending(ctx, u.Snapshot.Incidents)

	if u.Seeded {
		a.Logger.Info().Caller().Msgf("skipping alerts for %d incidents loaded into an empty cache", len(u.Added))
		return
	}

	for _, rec := range u.Added {
		a.alert(ctx, rec)
	}
}

func (a *Alerter) retryPending(ctx context.Context, current []incident.Record) {
	if len(a.pending) == 0 {
		return
	}

	retry := a.pending
	a.pending = make(map[int64]incident.Record)

	for id := range retry {
		rec, ok := lo.Find(current, func(r incident.Record) bool { return r.ID == id })

		if !ok {
			a.Logger.Warn().Caller().Msgf("dropping alert retry for incident %d: no longer in the feed", id)
			continue
		}

		a.alert(ctx, rec)
	}
}

func (a *Alerter) alert(ctx context.Context, rec incident.Record) {
	if err := a.HandleIncident(ctx, rec); err != nil {
		a.Logger.Error().Caller().Msgf("error alerting on incident %d, retrying on next update: %v", rec.ID, err)
		a.pending[rec.ID] = rec
	}
}

// HandleIncident sends an alert for rec if its severity and the alert
// history call for one.
func (a *Alerter) HandleIncident(ctx context.Context, rec incident.Record) error {
	if rec.Status() == incident.StatusResolved {
		return nil
	}

	severity := rec.Severity()

	switch severity {
	case incident.SeverityCritical:
		should, err := a.shouldAlertCritical(rec)

		if err != nil || !should {
			return err
		}
	case incident.SeverityHigh:
		should, err := a.shouldAlertHigh(rec)

		if err != nil || !should {
			return err
		}
	default:
		return nil
	}

	if err := a.Notifier.Notify(ctx, a.payload(rec)); err != nil {
		a.Metrics.ObserveAlert(string(severity), false)
		return fmt.Errorf("error notifying webhook: %w", err)
	}

	a.Metrics.ObserveAlert(string(severity), true)

	return a.recordAlert(rec)
}

// critical incidents are alerted once each
func (a *Alerter) shouldAlertCritical(rec incident.Record) (bool, error) {
	exists, err := a.Store.AlertExists(rec.ID)

	if err != nil {
		return false, err
	}

	return !exists, nil
}

// high incidents are alerted at most once per zone per interval
func (a *Alerter) shouldAlertHigh(rec incident.Record) (bool, error) {
	if exists, err := a.Store.AlertExists(rec.ID); err != nil || exists {
		return false, err
	}

	latest, err := a.Store.LatestAlertForZone(zoneOf(rec), string(incident.SeverityHigh))

	if err != nil {
		return false, err
	}

	if latest == nil || latest.AlertedAt == nil {
		return true, nil
	}

	return a.now().Sub(*latest.AlertedAt) >= a.HighSeverityInterval, nil
}

func (a *Alerter) recordAlert(rec incident.Record) error {
	now := a.now()

	_, err := a.Store.CreateAlert(&models.Alert{
		IncidentID: rec.ID,
		EventID:    rec.EventID,
		Severity:   string(rec.Severity()),
		Zone:       zoneOf(rec),
		AlertedAt:  &now,
	})

	return err
}

func (a *Alerter) payload(rec incident.Record) *Payload {
	res := &Payload{
		AlertID:       uuid.NewString(),
		IncidentID:    rec.ID,
		EventID:       rec.EventID,
		Severity:      string(rec.Severity()),
		Status:        string(rec.Status()),
		Zone:          rec.Metadata.Zone,
		DetectionType: rec.DetectionType,
		Label:         rec.Metadata.Label,
		ImageURL:      rec.ImageURL,
	}

	if !rec.DetectedAt.IsZero() {
		detectedAt := rec.DetectedAt.Time
		res.DetectedAt = &detectedAt
	}

	return res
}

func zoneOf(rec incident.Record) string {
	return strings.ToLower(strings.TrimSpace(rec.Metadata.Zone))
}
