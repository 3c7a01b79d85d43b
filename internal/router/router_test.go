package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/psds-microservice/installation-service/internal/auth"
	"github.com/psds-microservice/installation-service/internal/crmsync"
	"github.com/psds-microservice/installation-service/internal/database/dbtest"
	"github.com/psds-microservice/installation-service/internal/handler"
	"github.com/psds-microservice/installation-service/internal/lifecycle"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/scheduler"
	"github.com/psds-microservice/installation-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() { gin.SetMode(gin.TestMode) }

type recordingNotifier struct{ events []lifecycle.Event }

func (r *recordingNotifier) Notify(_ context.Context, _ *model.Installation, e lifecycle.Event) bool {
	r.events = append(r.events, e)
	return true
}

type env struct {
	h        http.Handler
	notifier *recordingNotifier
	partner  *model.Partner
	team     *model.Team
	rival    *model.Team
	store    *service.InstallationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	installations := service.NewInstallationService(db)
	partners := service.NewPartnerService(db)
	teams := service.NewTeamService(db)
	technicians := service.NewTechnicianService(db)
	settings := service.NewSettingService(db)

	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	p := &model.Partner{SalesforcePartnerID: "P-7", Name: "Nord", Username: "nord", PasswordHash: hash("segreto"), IsActive: true}
	require.NoError(t, partners.Create(ctx, p))
	rival := &model.Partner{SalesforcePartnerID: "P-9", Name: "Sud", Username: "sud", PasswordHash: hash("segreto"), IsActive: true}
	require.NoError(t, partners.Create(ctx, rival))
	team := &model.Team{SalesforceTeamID: "T-3", PartnerID: p.ID, Name: "Squadra A"}
	require.NoError(t, teams.Create(ctx, team))
	rivalTeam := &model.Team{SalesforceTeamID: "T-9", PartnerID: rival.ID, Name: "Squadra Sud"}
	require.NoError(t, teams.Create(ctx, rivalTeam))
	require.NoError(t, technicians.Create(ctx, &model.Technician{TeamID: team.ID, Name: "Mario", Username: "mario", PasswordHash: hash("chiave"), IsActive: true}))

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)
	notifier := &recordingNotifier{}
	engine := scheduler.NewEngine(scheduler.Deps{
		Installations: installations,
		Teams:         teams,
		Partners:      partners,
		Notifier:      notifier,
		Metrics:       m,
	})
	tokens := auth.NewTokens("router-test", time.Hour)
	authn := auth.NewAuthenticator(partners, technicians, tokens, "admin", hash("root-pass"))

	h := New(Handlers{
		Health:     handler.NewHealthHandler(func(context.Context) error { return nil }),
		Webhook:    handler.NewWebhookHandler(crmsync.NewInbound(installations, nil, m), nil),
		Auth:       handler.NewAuthHandler(authn, nil),
		Partner:    handler.NewPartnerHandler(engine, nil),
		Technician: handler.NewTechnicianHandler(engine, nil),
		Admin: handler.NewAdminHandler(handler.AdminStores{
			Installations: installations,
			Partners:      partners,
			Teams:         teams,
			Technicians:   technicians,
			Settings:      settings,
		}, nil),
		Metrics: metrics.Handler(reg),
	}, tokens, nil)
	return &env{h: h, notifier: notifier, partner: p, team: team, rival: rivalTeam, store: installations}
}

func (e *env) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func (e *env) login(t *testing.T, role, user, pass string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/"+role, "", `{"username":"`+user+`","password":"`+pass+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok auth.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	return tok.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateThenScheduleFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/webhook/salesforce", "", `{"ServiceAppointmentId":"SA-1","CustomerName":"Rossi","InstallationAddress":"Via Roma 1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, true, created["success"])
	id := uint64(created["installationId"].(float64))

	w = e.do(t, http.MethodPost, "/api/webhook/salesforce", "", `{"ServiceAppointmentId":"SA-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	token := e.login(t, "partner", "nord", "segreto")
	w = e.do(t, http.MethodGet, "/api/v1/partner/installations", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	path := "/api/v1/partner/installations/" + itoa(id) + "/schedule"
	w = e.do(t, http.MethodPost, path, token, `{"team_id":`+itoa(e.rival.ID)+`,"start":"2024-06-01T09:00:00Z","end":"2024-06-01T11:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = e.do(t, http.MethodPost, path, token, `{"team_id":`+itoa(e.team.ID)+`,"start":"2024-06-01T09:00:00Z","end":"2024-06-01T11:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, true, out["crm_notified"])
	assert.Equal(t, "not_configured", out["travel_time_unavailable"])
	inst := out["installation"].(map[string]interface{})
	assert.Equal(t, "scheduled", inst["status"])
	assert.Equal(t, "2024-06-01T09:00:00Z", inst["scheduled_start"])
	assert.Nil(t, inst["travel_time_minutes"])
	assert.Equal(t, []lifecycle.Event{lifecycle.EventSchedule}, e.notifier.events)

	w = e.do(t, http.MethodGet, "/api/v1/partner/calendar?from=2024-06-01&days=1", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"offset_minutes":540`)

	w = e.do(t, http.MethodGet, "/api/v1/partner/installations/export", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())

	tech := e.login(t, "technician", "mario", "chiave")
	w = e.do(t, http.MethodGet, "/api/v1/technician/installations", tech, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	statusPath := "/api/v1/technician/installations/" + itoa(id) + "/status"
	w = e.do(t, http.MethodPut, statusPath, tech, `{"status":"completed"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = e.do(t, http.MethodPut, statusPath, tech, `{"status":"in_progress"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/webhook/salesforce/delete", "", `{"ServiceAppointmentId":"SA-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/api/webhook/salesforce/delete", "", `{"ServiceAppointmentId":"SA-1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectAndDuration(t *testing.T) {
	e := newEnv(t)
	inst := &model.Installation{ServiceAppointmentID: "SA-9", CustomerName: "Verdi", InstallationAddress: "Via Po 2"}
	require.NoError(t, e.store.Create(context.Background(), inst))
	token := e.login(t, "partner", "nord", "segreto")
	base := "/api/v1/partner/installations/" + itoa(inst.ID)

	w := e.do(t, http.MethodPost, base+"/reject", token, `{"reason":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, base+"/duration", token, `{"duration_minutes":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPut, base+"/duration", token, `{"duration_minutes":90}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPut, base+"/status", token, `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, base+"/reject", token, `{"reason":"cliente non raggiungibile"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rejected", decode(t, w)["installation"].(map[string]interface{})["status"])

	w = e.do(t, http.MethodPost, base+"/cancel", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRoleScoping(t *testing.T) {
	e := newEnv(t)
	partner := e.login(t, "partner", "nord", "segreto")

	w := e.do(t, http.MethodGet, "/api/v1/partner/installations", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(t, http.MethodGet, "/api/v1/admin/settings", partner, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/partner", "", `{"username":"nord","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminSettingsAndReferenceData(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "admin", "admin", "root-pass")

	w := e.do(t, http.MethodPut, "/api/v1/admin/settings/salesforce_webhook_url", admin, `{"value":"https://crm.example/hook"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(t, http.MethodGet, "/api/v1/admin/settings/salesforce_webhook_url", admin, "")
	assert.Equal(t, "https://crm.example/hook", decode(t, w)["value"])
	w = e.do(t, http.MethodDelete, "/api/v1/admin/settings/salesforce_webhook_url", admin, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, "/api/v1/admin/settings/salesforce_webhook_url", admin, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/admin/partners", admin, `{"salesforce_partner_id":"P-7","name":"Dup","username":"other","password":"x1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = e.do(t, http.MethodPost, "/api/v1/admin/partners", admin, `{"salesforce_partner_id":"P-11","name":"Est","username":"est","password":"pw-est"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	// the new account can log in straight away
	e.login(t, "partner", "est", "pw-est")

	w = e.do(t, http.MethodGet, "/api/v1/admin/installations?status=bogus", admin, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodGet, "/api/v1/admin/installations/999", admin, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/statuses", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_progress"`)
	assert.NotContains(t, w.Body.String(), `"confirmed"`)

	w = e.do(t, http.MethodGet, "/swagger/openapi.json", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"openapi"`)

	w = e.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(handler.HeaderRequestID))
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
