package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyops/remedy/internal/learning"
	"github.com/remedyops/remedy/internal/lifecycle"
	"github.com/remedyops/remedy/internal/models"
	"github.com/remedyops/remedy/internal/notify"
	"github.com/remedyops/remedy/internal/oncall"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/timeline"
	"github.com/remedyops/remedy/internal/tokens"
)

type testEnv struct {
	srv       *httptest.Server
	store     *store.Store
	lifecycle *lifecycle.Engine
	notify    *notify.Manager
	tokens    *tokens.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tl := timeline.NewRecorder(s)
	lc := lifecycle.NewEngine(lifecycle.Config{Store: s, Timeline: tl})
	le, err := learning.NewEngine(context.Background(), s, 0.05, 0.3)
	require.NoError(t, err)
	resolver := oncall.NewResolver(s)
	ts := tokens.NewService("api-test-secret", time.Hour)
	nm := notify.NewManager(s, ts, resolver, tl, nil, notify.Config{})

	router := NewRouter(Config{
		Store:     s,
		Lifecycle: lc,
		Learning:  le,
		Timeline:  tl,
		OnCall:    resolver,
		Notify:    nm,
		Version:   "test",
	})
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: s, lifecycle: lc, notify: nm, tokens: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// createIncident posts an incident and returns the stored representation.
func (e *testEnv) createIncident(t *testing.T, title, service string) *models.Incident {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/incidents", map[string]any{
		"title":   title,
		"service": service,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeInto[*models.Incident](t, resp)
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/health", nil)
	body := decodeInto[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])

	resp = env.do(t, http.MethodGet, "/api/version", nil)
	version := decodeInto[map[string]string](t, resp)
	assert.Equal(t, "test", version["version"])
}

func TestCreateAndFetchIncident(t *testing.T) {
	env := newTestEnv(t)

	inc := env.createIncident(t, "Checkout latency", "checkout")
	assert.NotEmpty(t, inc.ID)
	assert.Equal(t, models.SeverityMedium, inc.Severity, "severity defaults to medium")
	assert.Equal(t, models.IncidentDetected, inc.Status)

	resp := env.do(t, http.MethodGet, "/api/incidents/"+inc.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeInto[*models.Incident](t, resp)
	assert.Equal(t, inc.ID, got.ID)

	resp = env.do(t, http.MethodGet, "/api/incidents?status=detected", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeInto[[]*models.Incident](t, resp)
	require.Len(t, list, 1)

	// Creation lands a detection event on the timeline.
	resp = env.do(t, http.MethodGet, "/api/incidents/"+inc.ID+"/timeline", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decodeInto[[]*models.IncidentEvent](t, resp)
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventIncidentDetected, events[0].Type)
}

func TestIncidentValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/incidents", map[string]any{"title": "no service"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/incidents", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "status query parameter is required")
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, "/api/incidents", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/incidents/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/incidents/no-such-id/bogus", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/incidents", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeInto[apiError](t, raw)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, "invalid_body", body.Code)
}

func TestActionApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inc := env.createIncident(t, "Memory climbing", "payments")
	require.NoError(t, env.lifecycle.BeginAnalysis(ctx, inc.ID, "alice"))

	resp := env.do(t, http.MethodPost, "/api/actions", map[string]any{
		"incidentId":    inc.ID,
		"type":          models.ActionRestartService,
		"targetService": "payments",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	action := decodeInto[*models.Action](t, resp)
	assert.Equal(t, models.ActionPendingApproval, action.Status)
	assert.True(t, action.RequiresApproval)

	resp = env.do(t, http.MethodPost, "/api/actions/"+action.ID+"/approve", map[string]any{
		"approver": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decodeInto[*models.Action](t, resp)
	assert.Equal(t, models.ActionApproved, approved.Status)
	assert.Equal(t, models.ModeDryRun, approved.ExecutionMode, "mode defaults to dry_run")

	resp = env.do(t, http.MethodPost, "/api/actions/"+action.ID+"/execute", map[string]any{
		"actor": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	executed := decodeInto[*models.Action](t, resp)
	assert.Equal(t, models.ActionSucceeded, executed.Status)
	require.NotNil(t, executed.ExecutionResult)
	assert.True(t, executed.ExecutionResult.Simulated)

	resp = env.do(t, http.MethodGet, "/api/incidents/"+inc.ID, nil)
	got := decodeInto[*models.Incident](t, resp)
	assert.Equal(t, models.IncidentResolved, got.Status)

	// Approving a terminal action is a conflict.
	resp = env.do(t, http.MethodPost, "/api/actions/"+action.ID+"/approve", map[string]any{
		"approver": "bob",
	})
	body := decodeInto[apiError](t, resp)
	assert.Equal(t, http.StatusConflict, body.Status)
	assert.Equal(t, "invalid_transition", body.Code)
}

func TestRejectAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inc := env.createIncident(t, "Error burst", "search")
	require.NoError(t, env.lifecycle.BeginAnalysis(ctx, inc.ID, "alice"))

	resp := env.do(t, http.MethodPost, "/api/actions", map[string]any{
		"incidentId":    inc.ID,
		"type":          models.ActionRollbackDeploy,
		"targetService": "search",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	action := decodeInto[*models.Action](t, resp)

	resp = env.do(t, http.MethodPost, "/api/actions/"+action.ID+"/reject", map[string]any{
		"rejecter": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "reason is required")
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/actions/"+action.ID+"/reject", map[string]any{
		"rejecter": "bob",
		"reason":   "too risky during peak",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decodeInto[*models.Action](t, resp)
	assert.Equal(t, models.ActionRejected, rejected.Status)
	assert.Equal(t, "too risky during peak", rejected.RejectionReason)

	resp = env.do(t, http.MethodPost, "/api/actions/"+action.ID+"/execute", map[string]any{
		"actor": "bob",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCaptureOutcomeAndPatterns(t *testing.T) {
	env := newTestEnv(t)

	inc := env.createIncident(t, "Disk filling", "storage")

	effective := true
	resp := env.do(t, http.MethodPost, "/api/outcomes", map[string]any{
		"incidentId":      inc.ID,
		"actionEffective": effective,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeInto[map[string]json.RawMessage](t, resp)
	var pattern models.IncidentPattern
	require.NoError(t, json.Unmarshal(body["pattern"], &pattern))
	assert.Equal(t, 1, pattern.OccurrenceCount)

	resp = env.do(t, http.MethodGet, "/api/patterns", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patterns := decodeInto[[]*models.IncidentPattern](t, resp)
	require.Len(t, patterns, 1)
	assert.Equal(t, "storage", patterns[0].Service)

	resp = env.do(t, http.MethodGet, "/api/insights?days=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	insights := decodeInto[*learning.Insights](t, resp)
	assert.Equal(t, 1, insights.OutcomesCaptured)

	resp = env.do(t, http.MethodGet, "/api/insights?days=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestOnCallEndpoints(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now().UTC()
	resp := env.do(t, http.MethodPost, "/api/oncall/schedules", map[string]any{
		"engineer":  "carol",
		"service":   "billing",
		"startTime": now.Add(-time.Hour).Format(time.RFC3339),
		"endTime":   now.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sched := decodeInto[*models.OnCallSchedule](t, resp)
	assert.NotEmpty(t, sched.ID)
	assert.Equal(t, models.PriorityPrimary, sched.Priority)
	assert.Equal(t, models.ChannelWebhook, sched.Channel)
	assert.True(t, sched.Active)

	resp = env.do(t, http.MethodGet, "/api/oncall?service=billing", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	current := decodeInto[*models.OnCallSchedule](t, resp)
	assert.Equal(t, "carol", current.Engineer)

	resp = env.do(t, http.MethodGet, "/api/oncall?service=unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/oncall", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/oncall/schedules", map[string]any{
		"engineer":  "carol",
		"startTime": now.Format(time.RFC3339),
		"endTime":   now.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "endTime must be after startTime")
	resp.Body.Close()
}

func TestNotificationAckOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, env.store.CreateSchedule(ctx, &models.OnCallSchedule{
		ID:        "s1",
		Engineer:  "dave",
		Service:   "checkout",
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Priority:  models.PriorityPrimary,
		Channel:   models.ChannelWebhook,
		Active:    true,
	}))
	inc := env.createIncident(t, "Checkout down", "checkout")

	stored, err := env.store.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	n, err := env.notify.NotifyIncident(ctx, stored)
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/notifications/"+n.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeInto[*models.Notification](t, resp)
	assert.Equal(t, "dave", fetched.Engineer)

	tok, err := env.tokens.Generate(n.ID, "dave", time.Hour)
	require.NoError(t, err)

	ackPath := fmt.Sprintf("/api/notifications/%s/ack?engineer=dave&token=%s", n.ID, tok.Value)
	resp = env.do(t, http.MethodGet, ackPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeInto[map[string]json.RawMessage](t, resp)
	var slaMet bool
	require.NoError(t, json.Unmarshal(body["slaMet"], &slaMet))
	assert.True(t, slaMet)

	// Acking again is idempotent, even with a garbage token.
	resp = env.do(t, http.MethodPost,
		fmt.Sprintf("/api/notifications/%s/ack?engineer=dave&token=bad.token", n.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/notifications/"+n.ID+"/ack", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "engineer and token are required")
	resp.Body.Close()
}

func TestNotificationAckRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, env.store.CreateSchedule(ctx, &models.OnCallSchedule{
		ID:        "s1",
		Engineer:  "erin",
		Service:   "search",
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Priority:  models.PriorityPrimary,
		Channel:   models.ChannelWebhook,
		Active:    true,
	}))
	inc := env.createIncident(t, "Search slow", "search")
	stored, err := env.store.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	n, err := env.notify.NotifyIncident(ctx, stored)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost,
		fmt.Sprintf("/api/notifications/%s/ack?engineer=erin&token=not.a.real.token", n.ID), nil)
	body := decodeInto[apiError](t, resp)
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.Equal(t, "invalid_token", body.Code)
}

func TestPipelineWithoutMonitor(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/check", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/generate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/check", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
