package scheduler

import (
	"testing"
	"time"

	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSnap(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2024, 6, 1, h, m, s, 0, time.UTC) }
	cases := []struct{ in, want time.Time }{
		{at(9, 0, 0), at(9, 0, 0)},
		{at(9, 7, 29), at(9, 0, 0)},
		{at(9, 7, 30), at(9, 15, 0)},
		{at(9, 8, 0), at(9, 15, 0)},
		{at(9, 22, 30), at(9, 30, 0)},
		{at(23, 53, 0), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.True(t, tc.want.Equal(Snap(tc.in)), "Snap(%s) = %s", tc.in.Format("15:04:05"), Snap(tc.in).Format("15:04:05"))
	}

	rome := time.FixedZone("CEST", 2*3600)
	got := Snap(time.Date(2024, 6, 1, 11, 7, 30, 0, rome))
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(at(9, 15, 0)))
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, DefaultDurationMinutes, DurationOf(&model.Installation{}))
	d := 45
	assert.Equal(t, 45, DurationOf(&model.Installation{DurationMinutes: &d}))
	zero := 0
	assert.Equal(t, DefaultDurationMinutes, DurationOf(&model.Installation{DurationMinutes: &zero}))
}

func TestOverlaps(t *testing.T) {
	h := func(n int) time.Time { return time.Date(2024, 6, 1, n, 0, 0, 0, time.UTC) }
	assert.True(t, Overlaps(h(9), h(11), h(10), h(12)))
	assert.True(t, Overlaps(h(9), h(12), h(10), h(11)))
	assert.False(t, Overlaps(h(9), h(10), h(10), h(11)))
	assert.False(t, Overlaps(h(12), h(13), h(9), h(10)))
}

func TestLayout(t *testing.T) {
	teamA := model.Team{ID: 1, Name: "A"}
	teamB := model.Team{ID: 2, Name: "B"}
	day := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	mk := func(id uint64, team uint64, startH, startM, mins int, dur *int) model.Installation {
		s := time.Date(2024, 6, 1, startH, startM, 0, 0, time.UTC)
		e := s.Add(time.Duration(mins) * time.Minute)
		return model.Installation{ID: id, ServiceAppointmentID: "SA", TeamID: &team, ScheduledStart: &s, ScheduledEnd: &e, DurationMinutes: dur, Status: model.InstallationStatusScheduled}
	}
	ninety := 90
	items := []model.Installation{
		mk(2, 1, 10, 0, 120, nil),
		mk(1, 1, 8, 30, 90, &ninety),
		mk(3, 1, 9, 30, 60, nil),
		mk(4, 2, 14, 0, 60, nil),
		mk(5, 9, 8, 0, 60, nil),
	}
	nextDay := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	nextEnd := nextDay.Add(time.Hour)
	teamAID := uint64(1)
	items = append(items, model.Installation{ID: 6, TeamID: &teamAID, ScheduledStart: &nextDay, ScheduledEnd: &nextEnd})

	got := Layout(day, []model.Team{teamA, teamB}, items)
	assert.Equal(t, "2024-06-01", got.Date)
	assert.Len(t, got.Lanes, 2)

	lane := got.Lanes[0]
	assert.Equal(t, uint64(1), lane.TeamID)
	assert.Len(t, lane.Entries, 3)
	assert.Equal(t, []uint64{1, 3, 2}, []uint64{lane.Entries[0].InstallationID, lane.Entries[1].InstallationID, lane.Entries[2].InstallationID})
	assert.Equal(t, 8*60+30, lane.Entries[0].OffsetMinutes)
	assert.Equal(t, 90, lane.Entries[0].WidthMinutes)
	assert.Equal(t, DefaultDurationMinutes, lane.Entries[1].WidthMinutes)
	// 8:30-10:00, 9:30-10:30 and 10:00-12:00
	assert.True(t, lane.Entries[0].Overlaps)
	assert.True(t, lane.Entries[1].Overlaps)
	assert.True(t, lane.Entries[2].Overlaps)

	assert.Len(t, got.Lanes[1].Entries, 1)
	assert.False(t, got.Lanes[1].Entries[0].Overlaps)
}
