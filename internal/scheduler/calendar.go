package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/service"
)

const MaxCalendarDays = 31

type CalendarEntry struct {
	InstallationID       uint64                   `json:"installation_id"`
	ServiceAppointmentID string                   `json:"service_appointment_id"`
	CustomerName         string                   `json:"customer_name"`
	InstallationAddress  string                   `json:"installation_address"`
	Status               model.InstallationStatus `json:"status"`
	Start                time.Time                `json:"start"`
	End                  time.Time                `json:"end"`
	// OffsetMinutes is measured from midnight UTC of the day.
	OffsetMinutes     int  `json:"offset_minutes"`
	WidthMinutes      int  `json:"width_minutes"`
	TravelTimeMinutes *int `json:"travel_time_minutes"`
	Overlaps          bool `json:"overlaps"`
}

type CalendarLane struct {
	TeamID   uint64          `json:"team_id"`
	TeamName string          `json:"team_name"`
	Entries  []CalendarEntry `json:"entries"`
}

type CalendarDay struct {
	Date  string         `json:"date"`
	Lanes []CalendarLane `json:"lanes"`
}

// Calendar lays out the partner's booked installations team by team for days starting at from.
func (e *Engine) Calendar(ctx context.Context, partnerID uint64, from time.Time, days int) ([]CalendarDay, error) {
	if days < 1 || days > MaxCalendarDays {
		return nil, errs.Validation("days must be between 1 and %d", MaxCalendarDays)
	}
	start := dayStart(from)
	until := start.AddDate(0, 0, days)

	teams, err := e.Teams.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	items, err := e.Installations.List(ctx, service.InstallationFilter{
		PartnerID:      partnerID,
		ScheduledOnly:  true,
		ScheduledFrom:  &start,
		ScheduledUntil: &until,
		Statuses: []model.InstallationStatus{
			model.InstallationStatusScheduled,
			model.InstallationStatusInProgress,
			model.InstallationStatusCompleted,
		},
	})
	if err != nil {
		return nil, err
	}

	out := make([]CalendarDay, 0, days)
	for d := 0; d < days; d++ {
		out = append(out, Layout(start.AddDate(0, 0, d), teams, items))
	}
	return out, nil
}

// Layout places the items starting on day into one lane per team. Items of other
// teams or other days are ignored.
func Layout(day time.Time, teams []model.Team, items []model.Installation) CalendarDay {
	day = dayStart(day)
	next := day.AddDate(0, 0, 1)

	lanes := make([]CalendarLane, 0, len(teams))
	index := make(map[uint64]int, len(teams))
	for _, t := range teams {
		index[t.ID] = len(lanes)
		lanes = append(lanes, CalendarLane{TeamID: t.ID, TeamName: t.Name, Entries: []CalendarEntry{}})
	}

	for i := range items {
		inst := &items[i]
		if inst.TeamID == nil || inst.ScheduledStart == nil || inst.ScheduledEnd == nil {
			continue
		}
		li, ok := index[*inst.TeamID]
		if !ok {
			continue
		}
		s := inst.ScheduledStart.UTC()
		if s.Before(day) || !s.Before(next) {
			continue
		}
		lanes[li].Entries = append(lanes[li].Entries, CalendarEntry{
			InstallationID:       inst.ID,
			ServiceAppointmentID: inst.ServiceAppointmentID,
			CustomerName:         inst.CustomerName,
			InstallationAddress:  inst.InstallationAddress,
			Status:               inst.Status,
			Start:                s,
			End:                  inst.ScheduledEnd.UTC(),
			OffsetMinutes:        int(s.Sub(day) / time.Minute),
			WidthMinutes:         DurationOf(inst),
			TravelTimeMinutes:    inst.TravelTimeMinutes,
		})
	}

	for li := range lanes {
		entries := lanes[li].Entries
		sort.SliceStable(entries, func(a, b int) bool { return entries[a].Start.Before(entries[b].Start) })
		for a := range entries {
			for b := a + 1; b < len(entries); b++ {
				if Overlaps(entries[a].Start, entries[a].End, entries[b].Start, entries[b].End) {
					entries[a].Overlaps = true
					entries[b].Overlaps = true
				}
			}
		}
	}
	return CalendarDay{Date: day.Format("2006-01-02"), Lanes: lanes}
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
