// Package crmsync keeps local installations aligned with the CRM: it applies inbound
// upsert/delete webhooks and pushes lifecycle notifications back out.
package crmsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/service"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type UpsertResult struct {
	ID      uint64
	Created bool
}

// Inbound applies CRM webhooks to the installation store.
type Inbound struct {
	store   service.InstallationStore
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewInbound(store service.InstallationStore, logger *zap.Logger, m *metrics.Collector) *Inbound {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbound{store: store, logger: logger, metrics: m}
}

// field maps a payload key to its column and decoder.
type field struct {
	column string
	decode func(json.RawMessage) (interface{}, error)
}

var upsertFields = map[string]field{
	"CustomerName":        {"customer_name", decodeString},
	"InstallationAddress": {"installation_address", decodeString},
	"CustomerSurname":     {"customer_surname", decodeNullableString},
	"CustomerCF":          {"customer_cf", decodeNullableString},
	"CustomerPhone":       {"customer_phone", decodeNullableString},
	"CustomerEmail":       {"customer_email", decodeNullableString},
	"CustomerAddress":     {"customer_address", decodeNullableString},
	"InstallationType":    {"installation_type", decodeNullableString},
	"TechnicalNotes":      {"technical_notes", decodeNullableString},
	"InstallerNotes":      {"installer_notes", decodeNullableString},
	"ImagesToView":        {"images_to_view", decodeImages},
	"CompletionLink":      {"completion_link", decodeNullableString},
	"PdfUrl":              {"pdf_url", decodeNullableString},
	"DurationMinutes":     {"duration_minutes", decodeNullableInt},
	"ScheduledStart":      {"scheduled_start", decodeNullableTime},
	"ScheduledEnd":        {"scheduled_end", decodeNullableTime},
}

// Upsert creates or updates the installation keyed by ServiceAppointmentId.
// On update only the keys present in body are written; explicit nulls clear the column.
func (s *Inbound) Upsert(ctx context.Context, body []byte) (UpsertResult, error) {
	if err := validate(ctx, upsertValidator, body); err != nil {
		return UpsertResult{}, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return UpsertResult{}, errs.Validation("invalid JSON body")
	}
	var ref string
	if err := json.Unmarshal(raw["ServiceAppointmentId"], &ref); err != nil {
		return UpsertResult{}, errs.Validation("ServiceAppointmentId must be a string")
	}

	changes := make(map[string]interface{}, len(raw))
	for key, msg := range raw {
		f, ok := upsertFields[key]
		if !ok {
			continue
		}
		v, err := f.decode(msg)
		if err != nil {
			return UpsertResult{}, errs.Validation("%s: %v", key, err)
		}
		changes[f.column] = v
	}

	existing, err := s.store.GetByServiceAppointmentID(ctx, ref)
	switch {
	case err == nil:
		if err := checkWindow(existing, changes); err != nil {
			return UpsertResult{}, err
		}
		updated, err := s.store.Update(ctx, existing.ID, changes)
		if err != nil {
			return UpsertResult{}, err
		}
		s.metrics.RecordWebhook("updated")
		s.logger.Info("crm upsert: updated", zap.String("service_appointment_id", ref), zap.Uint64("installation_id", updated.ID))
		return UpsertResult{ID: updated.ID, Created: false}, nil
	case !errs.IsNotFound(err):
		return UpsertResult{}, err
	}

	inst := &model.Installation{ServiceAppointmentID: ref, Status: model.InstallationStatusPending}
	applyChanges(inst, changes)
	if err := checkWindow(inst, nil); err != nil {
		return UpsertResult{}, err
	}
	if err := s.store.Create(ctx, inst); err != nil {
		return UpsertResult{}, err
	}
	s.metrics.RecordWebhook("created")
	s.logger.Info("crm upsert: created", zap.String("service_appointment_id", ref), zap.Uint64("installation_id", inst.ID))
	return UpsertResult{ID: inst.ID, Created: true}, nil
}

// Delete removes the installation permanently and returns its internal id.
func (s *Inbound) Delete(ctx context.Context, body []byte) (uint64, error) {
	if err := validate(ctx, deleteValidator, body); err != nil {
		return 0, err
	}
	var req struct {
		ServiceAppointmentID string `json:"ServiceAppointmentId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return 0, errs.Validation("invalid JSON body")
	}
	inst, err := s.store.GetByServiceAppointmentID(ctx, req.ServiceAppointmentID)
	if err != nil {
		return 0, err
	}
	if err := s.store.Delete(ctx, inst.ID); err != nil {
		return 0, err
	}
	s.metrics.RecordWebhook("deleted")
	s.logger.Info("crm delete", zap.String("service_appointment_id", req.ServiceAppointmentID), zap.Uint64("installation_id", inst.ID))
	return inst.ID, nil
}

// checkWindow rejects a merge that would leave an inverted window or strip a
// scheduled job of its slot.
func checkWindow(inst *model.Installation, changes map[string]interface{}) error {
	start, end := inst.ScheduledStart, inst.ScheduledEnd
	if v, ok := changes["scheduled_start"]; ok {
		start, _ = v.(*time.Time)
	}
	if v, ok := changes["scheduled_end"]; ok {
		end, _ = v.(*time.Time)
	}
	if start != nil && end != nil && !start.Before(*end) {
		return errs.Validation("ScheduledStart must be before ScheduledEnd")
	}
	if inst.Status == model.InstallationStatusScheduled && (start == nil || end == nil) {
		return errs.Validation("a scheduled installation must keep both ScheduledStart and ScheduledEnd")
	}
	return nil
}

func applyChanges(inst *model.Installation, changes map[string]interface{}) {
	for col, v := range changes {
		switch col {
		case "customer_name":
			inst.CustomerName = v.(string)
		case "installation_address":
			inst.InstallationAddress = v.(string)
		case "customer_surname":
			inst.CustomerSurname = v.(*string)
		case "customer_cf":
			inst.CustomerCF = v.(*string)
		case "customer_phone":
			inst.CustomerPhone = v.(*string)
		case "customer_email":
			inst.CustomerEmail = v.(*string)
		case "customer_address":
			inst.CustomerAddress = v.(*string)
		case "installation_type":
			inst.InstallationType = v.(*string)
		case "technical_notes":
			inst.TechnicalNotes = v.(*string)
		case "installer_notes":
			inst.InstallerNotes = v.(*string)
		case "images_to_view":
			if j, ok := v.(datatypes.JSON); ok {
				inst.ImagesToView = j
			}
		case "completion_link":
			inst.CompletionLink = v.(*string)
		case "pdf_url":
			inst.PdfURL = v.(*string)
		case "duration_minutes":
			inst.DurationMinutes = v.(*int)
		case "scheduled_start":
			inst.ScheduledStart = v.(*time.Time)
		case "scheduled_end":
			inst.ScheduledEnd = v.(*time.Time)
		}
	}
}
