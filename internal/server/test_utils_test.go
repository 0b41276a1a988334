package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	billingrepo "github.com/smallbiznis/irriflow/internal/billing/repository"
	billingservice "github.com/smallbiznis/irriflow/internal/billing/service"
	"github.com/smallbiznis/irriflow/internal/clock"
	"github.com/smallbiznis/irriflow/internal/config"
	meteringservice "github.com/smallbiznis/irriflow/internal/metering/service"
	"github.com/smallbiznis/irriflow/internal/observability"
	obsmetrics "github.com/smallbiznis/irriflow/internal/observability/metrics"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	pumprepo "github.com/smallbiznis/irriflow/internal/pump/repository"
	pumpservice "github.com/smallbiznis/irriflow/internal/pump/service"
	"github.com/smallbiznis/irriflow/internal/ratelimit"
	sensordomain "github.com/smallbiznis/irriflow/internal/sensor/domain"
	sensorrepo "github.com/smallbiznis/irriflow/internal/sensor/repository"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	sessionrepo "github.com/smallbiznis/irriflow/internal/session/repository"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/irriflow/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/irriflow/internal/tariff/service"
)

type testServer struct {
	server *Server
	engine *gin.Engine
	db     *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&tariffdomain.Tariff{},
		&pumpdomain.Pump{},
		&sessiondomain.UsageSession{},
		&sensordomain.SensorReading{},
		&billingdomain.Billing{},
	))
	require.NoError(t, gdb.Exec(
		`CREATE UNIQUE INDEX ux_usage_sessions_pump_active ON usage_sessions (pump_id) WHERE status = 'active'`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	tariffSvc := tariffservice.NewService(tariffservice.ServiceParam{
		DB: gdb, Log: log, GenID: node, Clock: fc, Repo: tariffrepo.Provide(),
	})
	pumpSvc := pumpservice.NewService(pumpservice.ServiceParam{
		DB: gdb, Log: log, GenID: node, Clock: fc, Repo: pumprepo.Provide(),
	})
	billingSvc := billingservice.NewService(billingservice.ServiceParam{
		DB: gdb, Log: log, GenID: node, Clock: fc, Repo: billingrepo.Provide(),
	})
	meteringSvc := meteringservice.NewService(meteringservice.ServiceParam{
		DB:       gdb,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Pumps:    pumprepo.Provide(),
		Sessions: sessionrepo.Provide(),
		Readings: sensorrepo.Provide(),
		Tariffs:  tariffSvc,
		Billing:  billingSvc,
	})

	provider, err := obsmetrics.NewProvider(nil, obsmetrics.Config{}, nil)
	require.NoError(t, err)
	httpMetrics, err := obsmetrics.NewHTTPMetrics(obsmetrics.Config{}, provider)
	require.NoError(t, err)

	engine := NewEngine(observability.Config{}, httpMetrics)
	srv := NewServer(ServerParams{
		Engine:   engine,
		Cfg:      config.Config{},
		DB:       gdb,
		Log:      log,
		GenID:    node,
		Metering: meteringSvc,
		Tariffs:  tariffSvc,
		Pumps:    pumpSvc,
		Billing:  billingSvc,
		Sessions: sessionrepo.Provide(),
		Readings: sensorrepo.Provide(),
		Limiter:  ratelimit.New(config.Config{}, log),
		Metrics:  nil,
	})

	return &testServer{server: srv, engine: engine, db: gdb, clock: fc, node: node}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (ts *testServer) seedTariff(t *testing.T, rate string) {
	t.Helper()
	resp := ts.request(t, http.MethodPost, "/admin/tariffs", map[string]any{
		"name":         "standard",
		"rate_per_kwh": rate,
	})
	require.Equal(t, http.StatusCreated, resp.Code)
}

func (ts *testServer) seedPump(t *testing.T) string {
	t.Helper()
	resp := ts.request(t, http.MethodPost, "/admin/pumps", map[string]any{
		"name":      "north field",
		"relay_pin": 17,
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	body := decodeBody(t, resp)
	pump, ok := body["pump"].(map[string]any)
	require.True(t, ok)
	id, ok := pump["id"].(string)
	require.True(t, ok)
	return id
}
