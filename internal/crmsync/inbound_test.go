package crmsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/psds-microservice/installation-service/internal/database/dbtest"
	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInbound(t *testing.T) (*Inbound, *service.InstallationService) {
	t.Helper()
	store := service.NewInstallationService(dbtest.Open(t))
	return NewInbound(store, nil, nil), store
}

func TestUpsertCreatesPending(t *testing.T) {
	in, store := newInbound(t)
	ctx := context.Background()

	res, err := in.Upsert(ctx, []byte(`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1"}`))
	require.NoError(t, err)
	assert.True(t, res.Created)

	got, err := store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstallationStatusPending, got.Status)
	assert.Nil(t, got.ScheduledStart)
	assert.Nil(t, got.TeamID)
}

func TestUpsertIsIdempotentOnReference(t *testing.T) {
	in, store := newInbound(t)
	ctx := context.Background()
	body := []byte(`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","DurationMinutes":90}`)

	first, err := in.Upsert(ctx, body)
	require.NoError(t, err)
	second, err := in.Upsert(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Created)

	all, err := store.List(ctx, service.InstallationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertPartialUpdate(t *testing.T) {
	in, store := newInbound(t)
	ctx := context.Background()

	res, err := in.Upsert(ctx, []byte(`{
		"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1",
		"CustomerPhone":"+39 123","TechnicalNotes":"citofono rotto","ImagesToView":["https://img/1.jpg","https://img/2.jpg"]
	}`))
	require.NoError(t, err)

	// phone absent -> kept; notes explicitly null -> cleared
	_, err = in.Upsert(ctx, []byte(`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi Mario","InstallationAddress":"Via Roma 1","TechnicalNotes":null}`))
	require.NoError(t, err)

	got, err := store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rossi Mario", got.CustomerName)
	require.NotNil(t, got.CustomerPhone)
	assert.Equal(t, "+39 123", *got.CustomerPhone)
	assert.Nil(t, got.TechnicalNotes)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, got.Images())
}

func TestUpsertStoresTimesInUTC(t *testing.T) {
	in, store := newInbound(t)
	ctx := context.Background()

	res, err := in.Upsert(ctx, []byte(`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1",
		"ScheduledStart":"2024-06-01T11:00:00+02:00","ScheduledEnd":"2024-06-01T13:00:00+02:00"}`))
	require.NoError(t, err)
	got, err := store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ScheduledStart)
	assert.True(t, got.ScheduledStart.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))
}

func TestUpsertValidation(t *testing.T) {
	in, _ := newInbound(t)
	ctx := context.Background()

	bodies := []string{
		`{"CustomerName":"Rossi","InstallationAddress":"Via Roma 1"}`,
		`{"ServiceAppointmentId":"SA-1","InstallationAddress":"Via Roma 1"}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi"}`,
		`{"ServiceAppointmentId":"","CustomerName":"Rossi","InstallationAddress":"Via Roma 1"}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","DurationMinutes":"two hours"}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","DurationMinutes":0}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","DurationMinutes":961}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","DurationMinutes":5000000}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","ScheduledStart":"tomorrow"}`,
		`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1",
		  "ScheduledStart":"2024-06-01T11:00:00Z","ScheduledEnd":"2024-06-01T10:00:00Z"}`,
		`not json`,
	}
	for _, b := range bodies {
		_, err := in.Upsert(ctx, []byte(b))
		assert.True(t, errors.Is(err, errs.ErrValidation), "body %s: %v", b, err)
	}
	_, err := in.Upsert(ctx, []byte(`{"ServiceAppointmentId":"SA-2","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","DurationMinutes":960}`))
	assert.NoError(t, err)
}

func TestUpsertCannotStripScheduledSlot(t *testing.T) {
	in, store := newInbound(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	inst := &model.Installation{ServiceAppointmentID: "SA-1", CustomerName: "Rossi", InstallationAddress: "Via Roma 1",
		Status: model.InstallationStatusScheduled, ScheduledStart: &start, ScheduledEnd: &end}
	require.NoError(t, store.Create(ctx, inst))

	_, err := in.Upsert(ctx, []byte(`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1","ScheduledEnd":null}`))
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestDelete(t *testing.T) {
	in, store := newInbound(t)
	ctx := context.Background()

	res, err := in.Upsert(ctx, []byte(`{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1"}`))
	require.NoError(t, err)

	_, err = in.Delete(ctx, []byte(`{"ServiceAppointmentId":"SA-unknown"}`))
	assert.True(t, errors.Is(err, errs.ErrInstallationNotFound))

	id, err := in.Delete(ctx, []byte(`{"ServiceAppointmentId":"SA-1"}`))
	require.NoError(t, err)
	assert.Equal(t, res.ID, id)

	_, err = store.GetByID(ctx, res.ID)
	assert.True(t, errors.Is(err, errs.ErrInstallationNotFound))

	_, err = in.Delete(ctx, []byte(`{}`))
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
