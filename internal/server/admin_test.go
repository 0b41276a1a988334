package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTariffAdminLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPost, "/admin/tariffs", map[string]any{
		"name":         "standard",
		"rate_per_kwh": "1500.00",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	body := decodeBody(t, resp)
	tariff := body["tariff"].(map[string]any)
	id := tariff["id"].(string)

	resp = ts.request(t, http.MethodGet, "/admin/tariffs/"+id, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.request(t, http.MethodPatch, "/admin/tariffs/"+id, map[string]any{
		"rate_per_kwh": "1750.00",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decodeBody(t, resp)
	assert.Equal(t, "1750", body["tariff"].(map[string]any)["rate_per_kwh"])

	resp = ts.request(t, http.MethodDelete, "/admin/tariffs/"+id, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["tariff"].(map[string]any)["active"])

	resp = ts.request(t, http.MethodPost, "/admin/tariffs", map[string]any{
		"name":         "broken",
		"rate_per_kwh": "0",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPumpAdminLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := ts.seedPump(t)

	resp := ts.request(t, http.MethodGet, "/admin/pumps", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	require.Len(t, body["pumps"].([]any), 1)

	resp = ts.request(t, http.MethodPatch, "/admin/pumps/"+id, map[string]any{
		"location": "east canal",
		"active":   false,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decodeBody(t, resp)
	pump := body["pump"].(map[string]any)
	assert.Equal(t, "east canal", pump["location"])
	assert.Equal(t, false, pump["active"])

	resp = ts.request(t, http.MethodGet, "/admin/pumps/"+ts.node.Generate().String(), nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSessionsAndBillingsAdminSurface(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTariff(t, "1500.00")
	pumpID := ts.seedPump(t)

	sessionID := startSession(t, ts, pumpID, "5.0")
	resp := ts.request(t, http.MethodPost, "/v1/usage/stop", map[string]any{
		"session_id": sessionID,
		"final_kwh":  "3.5",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.request(t, http.MethodGet, "/admin/sessions", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	require.Len(t, body["sessions"].([]any), 1)

	resp = ts.request(t, http.MethodGet, "/admin/billings", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body = decodeBody(t, resp)
	billings := body["billings"].([]any)
	require.Len(t, billings, 1)
	billing := billings[0].(map[string]any)
	assert.Equal(t, "5250", billing["amount"])
	billingID := billing["id"].(string)

	resp = ts.request(t, http.MethodPost, "/admin/billings/"+billingID+"/pay", map[string]any{
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decodeBody(t, resp)
	assert.Equal(t, "paid", body["billing"].(map[string]any)["status"])

	resp = ts.request(t, http.MethodPost, "/admin/billings/"+billingID+"/pay", map[string]any{
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}
