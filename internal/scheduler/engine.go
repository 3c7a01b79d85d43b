// Package scheduler is the scheduling engine: it places installations on a team's
// calendar and drives every status change through the lifecycle table, notifying
// the CRM when a transition is visible to it.
package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/psds-microservice/installation-service/internal/crmsync"
	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/kafka"
	"github.com/psds-microservice/installation-service/internal/lifecycle"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/service"
	"github.com/psds-microservice/installation-service/internal/traveltime"
	"go.uber.org/zap"
)

const eventTimeout = 5 * time.Second

// Deps: зависимости движка.
type Deps struct {
	Installations service.InstallationStore
	Teams         service.TeamStore
	Partners      service.PartnerStore
	Travel        traveltime.Estimator
	Notifier      crmsync.Notifier
	Events        kafka.EventProducer
	Metrics       *metrics.Collector
	Logger        *zap.Logger
	// RejectOverlap refuses a slot that intersects another active job of the same team.
	RejectOverlap bool
	Now           func() time.Time
}

type Engine struct {
	Deps
}

func NewEngine(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{Deps: deps}
}

// Outcome is the result of a state-changing operation.
type Outcome struct {
	Installation *model.Installation `json:"installation"`
	Event        lifecycle.Event     `json:"event,omitempty"`
	// CRMNotified is false when the notification failed, was skipped or was not owed.
	CRMNotified bool `json:"crm_notified"`
	// TravelTimeUnavailable carries the reason when a schedule could not estimate travel time.
	TravelTimeUnavailable traveltime.Reason `json:"travel_time_unavailable,omitempty"`
}

type ScheduleRequest struct {
	InstallationID uint64
	PartnerID      uint64
	TeamID         uint64
	Start          time.Time
	// End is derived from the job's duration when nil.
	End *time.Time
}

// Schedule assigns the installation to a team and window. Rescheduling a scheduled
// job takes the same path. Concurrent calls are last-write-wins.
func (e *Engine) Schedule(ctx context.Context, req ScheduleRequest) (*Outcome, error) {
	started := time.Now()
	defer func() { e.Metrics.ObserveSchedule(time.Since(started).Seconds()) }()

	if req.Start.IsZero() {
		return nil, errs.Validation("start is required")
	}
	if req.TeamID == 0 {
		return nil, errs.Validation("team is required")
	}
	inst, err := e.Installations.GetByID(ctx, req.InstallationID)
	if err != nil {
		return nil, err
	}
	if err := partnerAccess(inst, req.PartnerID); err != nil {
		return nil, err
	}
	if err := lifecycle.Check(inst.Status, model.InstallationStatusScheduled); err != nil {
		return nil, err
	}
	team, err := e.Teams.GetByID(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}
	if team.PartnerID != req.PartnerID {
		return nil, errs.Validation("team %d does not belong to partner %d", team.ID, req.PartnerID)
	}
	if !team.IsActive {
		return nil, errs.Validation("team %d is not active", team.ID)
	}
	partner, err := e.Partners.GetByID(ctx, req.PartnerID)
	if err != nil {
		return nil, err
	}

	// An explicit window is stored as given; only a derived window is snapped to the grid.
	var start, end time.Time
	if req.End != nil {
		start = req.Start.UTC().Truncate(time.Second)
		end = req.End.UTC().Truncate(time.Second)
	} else {
		start = Snap(req.Start)
		end = start.Add(time.Duration(DurationOf(inst)) * time.Minute)
	}
	if !start.Before(end) {
		return nil, errs.Validation("start must be before end")
	}
	if err := e.checkOverlap(ctx, team.ID, start, end, inst.ID); err != nil {
		return nil, err
	}

	origin := ""
	if partner.StartingAddress != nil {
		origin = *partner.StartingAddress
	}
	travel := e.estimate(ctx, origin, inst.InstallationAddress)

	updated, err := e.Installations.Update(ctx, inst.ID, map[string]interface{}{
		"team_id":             team.ID,
		"partner_id":          req.PartnerID,
		"scheduled_start":     start,
		"scheduled_end":       end,
		"travel_time_minutes": travel.MinutesPtr(),
		"status":              model.InstallationStatusScheduled,
	})
	if err != nil {
		return nil, err
	}
	e.logger(updated).Info("installation scheduled",
		zap.Uint64("team_id", team.ID),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Bool("rescheduled", inst.Status == model.InstallationStatusScheduled),
	)
	out := e.applied(ctx, updated, lifecycle.EventSchedule)
	out.TravelTimeUnavailable = travel.Reason
	return out, nil
}

// Accept claims a pending job for the partner.
func (e *Engine) Accept(ctx context.Context, id, partnerID uint64) (*Outcome, error) {
	inst, err := e.load(ctx, id, partnerID)
	if err != nil {
		return nil, err
	}
	return e.accept(ctx, inst, partnerID)
}

func (e *Engine) accept(ctx context.Context, inst *model.Installation, partnerID uint64) (*Outcome, error) {
	if inst.Status == model.InstallationStatusAccepted {
		return &Outcome{Installation: inst}, nil
	}
	if err := lifecycle.Check(inst.Status, model.InstallationStatusAccepted); err != nil {
		return nil, err
	}
	updated, err := e.Installations.Update(ctx, inst.ID, map[string]interface{}{
		"status":      model.InstallationStatusAccepted,
		"accepted_at": e.Now().UTC(),
		"partner_id":  partnerID,
	})
	if err != nil {
		return nil, err
	}
	e.logger(updated).Info("installation accepted", zap.Uint64("partner_id", partnerID))
	return e.applied(ctx, updated, lifecycle.EventAcceptance), nil
}

// Reject declines a pending job. The reason is trimmed before its length is checked.
func (e *Engine) Reject(ctx context.Context, id, partnerID uint64, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	if err := lifecycle.ValidateRejectionReason(reason); err != nil {
		return nil, err
	}
	inst, err := e.load(ctx, id, partnerID)
	if err != nil {
		return nil, err
	}
	if inst.Status == model.InstallationStatusRejected {
		return &Outcome{Installation: inst}, nil
	}
	if err := lifecycle.Check(inst.Status, model.InstallationStatusRejected); err != nil {
		return nil, err
	}
	updated, err := e.Installations.Update(ctx, inst.ID, map[string]interface{}{
		"status":           model.InstallationStatusRejected,
		"rejection_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	e.logger(updated).Info("installation rejected")
	return e.applied(ctx, updated, lifecycle.EventRejection), nil
}

// Cancel moves any non-terminal job to cancelled. The slot is kept for reference.
func (e *Engine) Cancel(ctx context.Context, id, partnerID uint64) (*Outcome, error) {
	inst, err := e.load(ctx, id, partnerID)
	if err != nil {
		return nil, err
	}
	if inst.Status == model.InstallationStatusCancelled {
		return &Outcome{Installation: inst}, nil
	}
	return e.transition(ctx, inst, model.InstallationStatusCancelled)
}

// ChangeStatus is the generic partner transition. Moving to the current status is a no-op.
// Rejection needs a reason and scheduling needs a slot, so those go through Reject and Schedule.
func (e *Engine) ChangeStatus(ctx context.Context, id, partnerID uint64, raw string) (*Outcome, error) {
	to, err := lifecycle.Parse(raw)
	if err != nil {
		return nil, err
	}
	inst, err := e.load(ctx, id, partnerID)
	if err != nil {
		return nil, err
	}
	if inst.Status == to {
		return &Outcome{Installation: inst}, nil
	}
	switch to {
	case model.InstallationStatusRejected:
		return nil, errs.Validation("rejecting an installation requires a reason")
	case model.InstallationStatusScheduled:
		if !inst.IsScheduled() {
			return nil, errs.Validation("installation has no slot; schedule it with a team and start time")
		}
		if err := lifecycle.Check(inst.Status, to); err != nil {
			return nil, err
		}
		if err := e.checkOverlap(ctx, *inst.TeamID, inst.ScheduledStart.UTC(), inst.ScheduledEnd.UTC(), inst.ID); err != nil {
			return nil, err
		}
	case model.InstallationStatusAccepted:
		return e.accept(ctx, inst, partnerID)
	}
	return e.transition(ctx, inst, to)
}

// TechnicianChangeStatus lets a field technician start or complete a job of their team.
func (e *Engine) TechnicianChangeStatus(ctx context.Context, id, teamID uint64, raw string) (*Outcome, error) {
	to, err := lifecycle.Parse(raw)
	if err != nil {
		return nil, err
	}
	inst, err := e.Installations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.TeamID == nil || *inst.TeamID != teamID {
		return nil, errs.Forbidden("installation is not assigned to your team")
	}
	if inst.Status == to {
		return &Outcome{Installation: inst}, nil
	}
	if !lifecycle.TechnicianAllowed(inst.Status, to) {
		return nil, errs.InvalidTransition("technicians cannot move an installation from %s to %s", inst.Status, to)
	}
	return e.transition(ctx, inst, to)
}

// UpdateDuration stores the planned effort. On a scheduled job the end moves with it
// and the CRM is told about the new window; travel time is left alone.
func (e *Engine) UpdateDuration(ctx context.Context, id, partnerID uint64, minutes int) (*Outcome, error) {
	if minutes <= 0 || minutes > MaxDurationMinutes {
		return nil, errs.Validation("duration must be between 1 and %d minutes", MaxDurationMinutes)
	}
	inst, err := e.load(ctx, id, partnerID)
	if err != nil {
		return nil, err
	}
	if lifecycle.IsTerminal(inst.Status) {
		return nil, errs.InvalidTransition("installation is %s", inst.Status)
	}
	changes := map[string]interface{}{"duration_minutes": minutes}
	rescheduled := inst.Status == model.InstallationStatusScheduled && inst.IsScheduled()
	if rescheduled {
		end := inst.ScheduledStart.UTC().Add(time.Duration(minutes) * time.Minute)
		if err := e.checkOverlap(ctx, *inst.TeamID, inst.ScheduledStart.UTC(), end, inst.ID); err != nil {
			return nil, err
		}
		changes["scheduled_end"] = end
	}
	updated, err := e.Installations.Update(ctx, inst.ID, changes)
	if err != nil {
		return nil, err
	}
	e.logger(updated).Info("installation duration updated", zap.Int("minutes", minutes))
	if !rescheduled {
		return &Outcome{Installation: updated}, nil
	}
	return e.applied(ctx, updated, lifecycle.EventSchedule), nil
}

func (e *Engine) ListPartnerInstallations(ctx context.Context, partnerID uint64) ([]model.Installation, error) {
	if partnerID == 0 {
		return nil, errs.Forbidden("session is not bound to a partner")
	}
	return e.Installations.List(ctx, service.InstallationFilter{PartnerID: partnerID})
}

func (e *Engine) ListPartnerTeams(ctx context.Context, partnerID uint64) ([]model.Team, error) {
	return e.Teams.ListByPartner(ctx, partnerID)
}

// ListTechnicianInstallations returns the team's jobs, cancelled ones excluded, by start time.
func (e *Engine) ListTechnicianInstallations(ctx context.Context, teamID uint64) ([]model.Installation, error) {
	// a zero team would disable the team filter
	if teamID == 0 {
		return nil, errs.Forbidden("session is not bound to a team")
	}
	return e.Installations.List(ctx, service.InstallationFilter{TeamID: teamID, ExcludeStatus: model.InstallationStatusCancelled})
}

func (e *Engine) load(ctx context.Context, id, partnerID uint64) (*model.Installation, error) {
	inst, err := e.Installations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := partnerAccess(inst, partnerID); err != nil {
		return nil, err
	}
	return inst, nil
}

// partnerAccess: unclaimed jobs are open to every partner, claimed ones only to their owner.
func partnerAccess(inst *model.Installation, partnerID uint64) error {
	if inst.PartnerID != nil && *inst.PartnerID != partnerID {
		return errs.Forbidden("installation belongs to another partner")
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, inst *model.Installation, to model.InstallationStatus) (*Outcome, error) {
	if err := lifecycle.Check(inst.Status, to); err != nil {
		return nil, err
	}
	updated, err := e.Installations.Update(ctx, inst.ID, map[string]interface{}{"status": to})
	if err != nil {
		return nil, err
	}
	e.logger(updated).Info("installation status changed", zap.String("from", string(inst.Status)))
	return e.applied(ctx, updated, lifecycle.EventFor(to)), nil
}

// applied runs the side effects of a stored transition. None of them can fail the operation.
func (e *Engine) applied(ctx context.Context, inst *model.Installation, event lifecycle.Event) *Outcome {
	e.Metrics.RecordTransition(string(inst.Status))
	e.publish(inst)
	out := &Outcome{Installation: inst, Event: event}
	if event != lifecycle.EventNone && e.Notifier != nil {
		out.CRMNotified = e.Notifier.Notify(ctx, inst, event)
	}
	return out
}

// publish is fire-and-forget: the event should leave even if the request is cancelled, but with a timeout.
func (e *Engine) publish(inst *model.Installation) {
	if e.Events == nil {
		return
	}
	payload := kafka.InstallationPayload(inst)
	name := kafka.EventName(string(inst.Status))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		e.Events.ProduceInstallationEvent(ctx, name, payload)
	}()
}

func (e *Engine) estimate(ctx context.Context, origin, destination string) traveltime.Result {
	if e.Travel == nil {
		return traveltime.Unavailable(traveltime.ReasonNotConfigured)
	}
	return e.Travel.Estimate(ctx, origin, destination)
}

func (e *Engine) checkOverlap(ctx context.Context, teamID uint64, start, end time.Time, selfID uint64) error {
	if !e.RejectOverlap {
		return nil
	}
	hits, err := e.Installations.FindOverlapping(ctx, teamID, start, end, selfID)
	if err != nil {
		return err
	}
	if len(hits) > 0 {
		return errs.Conflict("team %d is already booked by installation %s in that window", teamID, hits[0].ServiceAppointmentID)
	}
	return nil
}

func (e *Engine) logger(inst *model.Installation) *zap.Logger {
	return e.Logger.With(
		zap.Uint64("installation_id", inst.ID),
		zap.String("service_appointment_id", inst.ServiceAppointmentID),
		zap.String("status", string(inst.Status)),
	)
}
