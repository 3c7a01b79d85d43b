// Package lifecycle owns the installation status machine: the canonical status
// enumeration, the display metadata for each status and the allowed transitions.
package lifecycle

import (
	"unicode/utf8"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
)

// MinRejectionReasonLength is counted in characters, not bytes.
const MinRejectionReasonLength = 10

// Event is the CRM-visible notification triggered by a transition.
type Event string

const (
	EventNone         Event = ""
	EventSchedule     Event = "schedule"
	EventCancellation Event = "cancellation"
	EventRejection    Event = "rejection"
	EventAcceptance   Event = "acceptance"
)

// StatusInfo is what the UI needs to render a status.
type StatusInfo struct {
	Status   model.InstallationStatus `json:"status"`
	Label    string                   `json:"label"`
	Color    string                   `json:"color"`
	Terminal bool                     `json:"terminal"`
}

var statuses = []StatusInfo{
	{Status: model.InstallationStatusPending, Label: "In Attesa", Color: "#6b7280"},
	{Status: model.InstallationStatusAccepted, Label: "Accettata", Color: "#7c3aed"},
	{Status: model.InstallationStatusScheduled, Label: "Schedulata", Color: "#2563eb"},
	{Status: model.InstallationStatusInProgress, Label: "In Corso", Color: "#ea580c"},
	{Status: model.InstallationStatusCompleted, Label: "Completata", Color: "#16a34a", Terminal: true},
	{Status: model.InstallationStatusCancelled, Label: "Annullata", Color: "#dc2626"},
	{Status: model.InstallationStatusRejected, Label: "Rifiutata", Color: "#991b1b", Terminal: true},
}

// Statuses returns the canonical table in lifecycle order.
func Statuses() []StatusInfo {
	out := make([]StatusInfo, len(statuses))
	copy(out, statuses)
	return out
}

// Info returns metadata for s.
func Info(s model.InstallationStatus) (StatusInfo, bool) {
	for _, st := range statuses {
		if st.Status == s {
			return st, true
		}
	}
	return StatusInfo{}, false
}

// Parse accepts only the canonical tags; legacy names such as "confirmed" are refused.
func Parse(raw string) (model.InstallationStatus, error) {
	s := model.InstallationStatus(raw)
	if _, ok := Info(s); !ok {
		return "", errs.Validation("unknown status %q", raw)
	}
	return s, nil
}

func IsTerminal(s model.InstallationStatus) bool {
	info, ok := Info(s)
	return ok && info.Terminal
}

var transitions = map[model.InstallationStatus][]model.InstallationStatus{
	model.InstallationStatusPending: {
		model.InstallationStatusAccepted,
		model.InstallationStatusRejected,
		model.InstallationStatusScheduled,
		model.InstallationStatusCancelled,
	},
	model.InstallationStatusAccepted: {
		model.InstallationStatusScheduled,
		model.InstallationStatusCancelled,
	},
	model.InstallationStatusScheduled: {
		model.InstallationStatusScheduled, // reschedule
		model.InstallationStatusInProgress,
		model.InstallationStatusCancelled,
	},
	model.InstallationStatusInProgress: {
		model.InstallationStatusCompleted,
		model.InstallationStatusCancelled,
	},
	// A cancelled job may be offered again.
	model.InstallationStatusCancelled: {
		model.InstallationStatusPending,
		model.InstallationStatusScheduled,
	},
}

// CanTransition reports whether from -> to is an edge of the machine.
func CanTransition(from, to model.InstallationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check validates from -> to, returning an ErrInvalidTransition otherwise.
func Check(from, to model.InstallationStatus) error {
	if _, ok := Info(to); !ok {
		return errs.Validation("unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return errs.InvalidTransition("cannot move installation from %s to %s", from, to)
	}
	return nil
}

// EventFor returns the CRM notification owed for entering to.
func EventFor(to model.InstallationStatus) Event {
	switch to {
	case model.InstallationStatusScheduled:
		return EventSchedule
	case model.InstallationStatusCancelled:
		return EventCancellation
	case model.InstallationStatusRejected:
		return EventRejection
	case model.InstallationStatusAccepted:
		return EventAcceptance
	default:
		return EventNone
	}
}

// ValidateRejectionReason enforces the minimum reason length.
func ValidateRejectionReason(reason string) error {
	if utf8.RuneCountInString(reason) < MinRejectionReasonLength {
		return errs.Validation("rejection reason must be at least %d characters", MinRejectionReasonLength)
	}
	return nil
}

// TechnicianAllowed lists the only moves a field technician may perform.
func TechnicianAllowed(from, to model.InstallationStatus) bool {
	return (from == model.InstallationStatusScheduled && to == model.InstallationStatusInProgress) ||
		(from == model.InstallationStatusInProgress && to == model.InstallationStatusCompleted)
}
