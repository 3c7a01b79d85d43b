package crmsync

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/psds-microservice/installation-service/internal/lifecycle"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"github.com/psds-microservice/installation-service/internal/model"
	"go.uber.org/zap"
)

// isoMillis matches the CRM's expected timestamp shape, e.g. 2024-06-01T09:00:00.000Z.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Notification is the outbound webhook body.
type Notification struct {
	EventType            lifecycle.Event `json:"eventType"`
	ServiceAppointmentID string          `json:"ServiceAppointmentId"`
	StartDateTime        string          `json:"StartDateTime,omitempty"`
	EndDateTime          string          `json:"EndDateTime,omitempty"`
	RejectionReason      string          `json:"RejectionReason,omitempty"`
	Status               string          `json:"Status,omitempty"`
}

// Notifier pushes a lifecycle event to the CRM. It reports delivery and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, inst *model.Installation, event lifecycle.Event) bool
}

// URLSource resolves the destination at call time.
type URLSource interface {
	Value(ctx context.Context, key string) (string, error)
}

// WebhookNotifier posts notifications to the URL stored under salesforce_webhook_url.
// There is no retry: a failed delivery is logged and reported as false.
type WebhookNotifier struct {
	httpClient *resty.Client
	urls       URLSource
	logger     *zap.Logger
	metrics    *metrics.Collector
}

func NewWebhookNotifier(urls URLSource, timeout time.Duration, logger *zap.Logger, m *metrics.Collector) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookNotifier{httpClient: client, urls: urls, logger: logger, metrics: m}
}

// BuildNotification returns false when inst lacks what the event needs.
func BuildNotification(inst *model.Installation, event lifecycle.Event) (Notification, bool) {
	n := Notification{EventType: event, ServiceAppointmentID: inst.ServiceAppointmentID}
	switch event {
	case lifecycle.EventSchedule:
		if !inst.IsScheduled() {
			return n, false
		}
		n.StartDateTime = inst.ScheduledStart.UTC().Format(isoMillis)
		n.EndDateTime = inst.ScheduledEnd.UTC().Format(isoMillis)
	case lifecycle.EventRejection:
		if inst.RejectionReason != nil {
			n.RejectionReason = *inst.RejectionReason
		}
	case lifecycle.EventCancellation, lifecycle.EventAcceptance:
		n.Status = string(inst.Status)
	default:
		return n, false
	}
	return n, true
}

func (w *WebhookNotifier) Notify(ctx context.Context, inst *model.Installation, event lifecycle.Event) bool {
	log := w.logger.With(
		zap.String("event", string(event)),
		zap.String("service_appointment_id", inst.ServiceAppointmentID),
		zap.Uint64("installation_id", inst.ID),
	)

	payload, ok := BuildNotification(inst, event)
	if !ok {
		log.Warn("crm notification: installation not in a notifiable state")
		w.metrics.RecordNotification(string(event), "failed")
		return false
	}

	url, err := w.urls.Value(ctx, model.SettingSalesforceWebhookURL)
	if err != nil {
		log.Error("crm notification: read webhook url", zap.Error(err))
		w.metrics.RecordNotification(string(event), "failed")
		return false
	}
	if url == "" {
		log.Warn("crm notification skipped: webhook url not configured")
		w.metrics.RecordNotification(string(event), "skipped")
		return false
	}

	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		log.Warn("crm notification failed", zap.Error(err))
		w.metrics.RecordNotification(string(event), "failed")
		return false
	}
	if !resp.IsSuccess() {
		log.Warn("crm notification rejected", zap.Int("status_code", resp.StatusCode()))
		w.metrics.RecordNotification(string(event), "failed")
		return false
	}
	log.Info("crm notification sent")
	w.metrics.RecordNotification(string(event), "sent")
	return true
}
