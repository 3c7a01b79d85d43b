package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/psds-microservice/installation-service/internal/crmsync"
	"github.com/psds-microservice/installation-service/internal/database"
	"github.com/psds-microservice/installation-service/internal/kafka"
	"github.com/psds-microservice/installation-service/internal/lifecycle"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var resyncCRMCmd = &cobra.Command{
	Use:   "resync-crm",
	Short: "Re-send the schedule of every scheduled installation to the CRM webhook, and to Kafka when configured.",
	RunE:  runResyncCRM,
}

func runResyncCRM(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicInstallation, log)
	defer producer.Close()
	var events kafka.EventProducer
	if producer.Enabled() {
		events = producer
	}
	return resyncCRM(ctx, db, events, cfg.WebhookTimeout, log)
}

// resyncCRM pushes every scheduled installation to the CRM webhook. Kafka, when
// events is non-nil, gets a copy of each schedule event on top of that.
func resyncCRM(ctx context.Context, db *gorm.DB, events kafka.EventProducer, timeout time.Duration, log *zap.Logger) error {
	installations := service.NewInstallationService(db)
	items, err := installations.List(ctx, service.InstallationFilter{
		Statuses:      []model.InstallationStatus{model.InstallationStatusScheduled},
		ScheduledOnly: true,
	})
	if err != nil {
		return fmt.Errorf("list installations: %w", err)
	}
	log.Info("resync-crm: found scheduled installations", zap.Int("count", len(items)))

	if events != nil {
		for i := range items {
			events.ProduceInstallationEvent(ctx, kafka.EventName(string(model.InstallationStatusScheduled)), kafka.InstallationPayload(&items[i]))
		}
		log.Info("resync-crm: published to kafka", zap.Int("sent", len(items)))
	}

	settings := service.NewSettingService(db)
	url, err := settings.Value(ctx, model.SettingSalesforceWebhookURL)
	if err != nil {
		return fmt.Errorf("read webhook url: %w", err)
	}
	if url == "" {
		log.Warn("resync-crm: salesforce_webhook_url not set; CRM not notified", zap.Int("found", len(items)))
		return nil
	}
	notifier := crmsync.NewWebhookNotifier(settings, timeout, log, nil)
	sent := 0
	for i := range items {
		if notifier.Notify(ctx, &items[i], lifecycle.EventSchedule) {
			sent++
		}
		if (i+1)%50 == 0 || i == len(items)-1 {
			log.Info("resync-crm: webhook progress", zap.Int("done", i+1), zap.Int("total", len(items)))
		}
	}
	log.Info("resync-crm: done via webhook", zap.Int("sent", sent), zap.Int("failed", len(items)-sent))
	if sent < len(items) {
		return fmt.Errorf("resync-crm: %d of %d notifications failed", len(items)-sent, len(items))
	}
	return nil
}
