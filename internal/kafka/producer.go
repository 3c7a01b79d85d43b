package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventProducer: интерфейс для отправки событий заявки в Kafka (для подмены моком в тестах).
type EventProducer interface {
	ProduceInstallationEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer пишет события жизненного цикла заявок в топик Kafka (best-effort, не блокирует API).
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой, методы no-op.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(brokers) == 0 || topic == "" {
		return &Producer{logger: logger}
	}
	return &Producer{
		topic:  topic,
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events actually leave the process.
func (p *Producer) Enabled() bool { return p != nil && p.writer != nil }

// ProduceInstallationEvent отправляет событие в топик. Ключ сообщения равен ServiceAppointmentId,
// чтобы события одной заявки попадали в одну партицию.
func (p *Producer) ProduceInstallationEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if !p.Enabled() {
		return
	}
	msg := map[string]interface{}{"event": event}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("kafka: marshal installation event", zap.String("event", event), zap.Error(err))
		return
	}
	var key []byte
	if ref, ok := payload["service_appointment_id"].(string); ok {
		key = []byte(ref)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: body}); err != nil {
		p.logger.Warn("kafka: write installation event", zap.String("event", event), zap.Error(err))
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

// EventName builds the topic-level event name, e.g. installation.scheduled.
func EventName(suffix string) string { return "installation." + suffix }

// InstallationPayload is the event body shared by the API and the resync command.
func InstallationPayload(i *model.Installation) map[string]interface{} {
	if i == nil {
		return nil
	}
	out := map[string]interface{}{
		"installation_id":        i.ID,
		"service_appointment_id": i.ServiceAppointmentID,
		"status":                 string(i.Status),
	}
	if i.PartnerID != nil {
		out["partner_id"] = *i.PartnerID
	}
	if i.TeamID != nil {
		out["team_id"] = *i.TeamID
	}
	if i.ScheduledStart != nil {
		out["scheduled_start"] = i.ScheduledStart.UTC().Format(time.RFC3339)
	}
	if i.ScheduledEnd != nil {
		out["scheduled_end"] = i.ScheduledEnd.UTC().Format(time.RFC3339)
	}
	if i.TravelTimeMinutes != nil {
		out["travel_time_minutes"] = *i.TravelTimeMinutes
	}
	if i.RejectionReason != nil {
		out["rejection_reason"] = *i.RejectionReason
	}
	return out
}
