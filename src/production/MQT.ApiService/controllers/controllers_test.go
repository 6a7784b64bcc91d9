package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Config"
	container "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Container"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics.Init()

	cfg := &config.Config{
		Storage:     config.StorageConfig{Backend: config.StorageMemory},
		Mongo:       config.MongoConfig{OpTimeout: time.Second},
		Aggregation: config.AggregationConfig{Concurrency: 4, LookupTimeout: time.Second},
		Dashboard:   config.DashboardConfig{PollInterval: time.Second, MachineCount: 4},
		Drafts:      config.DraftConfig{TTL: time.Hour},
	}
	log := logger.Nop()
	ctr := container.NewApiContainerWithConfig(cfg, log)
	services, err := ctr.GetServices()
	require.NoError(t, err)

	router := gin.New()
	NewDeviceController(services.Registry, services.Aggregation, log).RegisterRoutes(router)
	NewEventController(services.Events, log).RegisterRoutes(router)
	NewLabelController(services.Labels).RegisterRoutes(router)
	NewDraftController(services.Drafts, log).RegisterRoutes(router)
	NewDashboardController(services.Dashboard, log).RegisterRoutes(router)
	NewHealthController(ctr.GetHealthChecker()).RegisterRoutes(router)
	return router
}

func do(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUpsertSiteCreateThenUpdate(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/device_motherson", `{"siteName":"Acme","Devices":[
		{"device_id":"A","module_id":"1","dynamic_fields":[{"key":"2,1","activeValue":"C&C-01-S"}]}
	]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Data saved successfully", decode(t, w)["message"])

	w = do(router, http.MethodPost, "/device_motherson", `{"siteName":"Acme","Devices":[
		{"device_id":"A","module_id":"1","dynamic_fields":[{"key":"3,01"}]},
		{"device_id":"B","module_id":"2"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Devices updated successfully", body["message"])

	devices := body["data"].(map[string]interface{})["Devices"].([]interface{})
	require.Len(t, devices, 2)
	fields := devices[0].(map[string]interface{})["dynamic_fields"].([]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, "3,01", fields[0].(map[string]interface{})["key"])
	assert.Empty(t, devices[1].(map[string]interface{})["dynamic_fields"])
}

func TestUpsertSiteValidation(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		body string
		code string
	}{
		{`{"Devices":[]}`, "missing_site_name"},
		{`{"siteName":"Acme"}`, "invalid_devices"},
		{`{"siteName":"Acme","Devices":{"device_id":"A"}}`, "invalid_devices"},
		{`{"siteName":"Acme","Devices":[{"device_id":"","module_id":"1"}]}`, "invalid_device"},
		{`not json`, "invalid_payload"},
	}
	for _, tc := range cases {
		w := do(router, http.MethodPost, "/device_motherson", tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.body)
		assert.Equal(t, tc.code, decode(t, w)["code"], tc.body)
	}
}

func TestGetDevice(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/device_motherson",
		`{"siteName":"Acme","Devices":[{"device_id":"D1","module_id":"1"}]}`).Code)

	w := do(router, http.MethodGet, "/device_motherson/Acme/D1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Device found", body["message"])
	assert.Equal(t, "D1", body["data"].(map[string]interface{})["device_id"])

	w = do(router, http.MethodGet, "/device_motherson/Nope/D1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Site not found", decode(t, w)["message"])

	w = do(router, http.MethodGet, "/device_motherson/Acme/DX", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Device not found", decode(t, w)["message"])

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/sites/Acme", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/sites/Nope", nil).Code)
}

func recordEvent(t *testing.T, router *gin.Engine, deviceID string, moduleID int, fields map[string]interface{}) {
	t.Helper()
	w := do(router, http.MethodPost, "/events", map[string]interface{}{
		"device_id":   deviceID,
		"entity_name": "Box_1",
		"module_id":   moduleID,
		"fields":      fields,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestEventsAndLatestValues(t *testing.T) {
	router := newTestRouter(t)
	recordEvent(t, router, "D1", 1, map[string]interface{}{"2,1": "1", "3,01": 120, "3,1": "7", "meta": "x"})

	w := do(router, http.MethodGet, "/get-latest-values?device_id=D1&deviceName=Box_1&module_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []interface{}{"2,1", "3,01", "3,1"}, decode(t, w)["dynamicFieldsKeys"])

	w = do(router, http.MethodGet, "/get-latest-values?device_id=D1&module_id=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required parameters", decode(t, w)["message"])

	w = do(router, http.MethodGet, "/get-latest-values?device_id=D9&deviceName=Box_1&module_id=1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No matching data found", decode(t, w)["message"])

	w = do(router, http.MethodGet, "/get-latest-values?device_id=D1&deviceName=Box_1&module_id=one", nil)
	assert.Equal(t, "invalid_module_id", decode(t, w)["code"])

	w = do(router, http.MethodGet, "/events/latest?device_id=D1&entity_name=Box_1&module_id=1&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "120", items[0].(map[string]interface{})["3,01"])

	w = do(router, http.MethodPost, "/events", `{"device_id":"D1","entity_name":"Box_1","fields":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDeviceEvents(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/device_motherson",
		`{"siteName":"Acme","Devices":[{"device_id":"D1","module_id":"1"},{"device_id":"D2","module_id":"2"}]}`).Code)
	recordEvent(t, router, "D1", 1, map[string]interface{}{"2,1": "0"})

	w := do(router, http.MethodPost, "/get-device-events", `{"siteName":"Acme"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Devices with latest events fetched successfully", body["message"])
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.NotNil(t, data[0].(map[string]interface{})["latest_event"])
	assert.Nil(t, data[1].(map[string]interface{})["latest_event"])

	w = do(router, http.MethodPost, "/get-device-events", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required parameter: siteName", decode(t, w)["message"])

	w = do(router, http.MethodPost, "/get-device-events", `{"siteName":"Nope"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Site with name Nope not found", decode(t, w)["message"])
}

func TestLabels(t *testing.T) {
	router := newTestRouter(t)
	w := do(router, http.MethodGet, "/labels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	labels := decode(t, w)["labels"].([]interface{})
	assert.Contains(t, labels, "Voltage L1N")
	assert.Contains(t, labels, "C&C-04-S")
}

func TestDraftFlow(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/drafts", `{"siteName":"Acme"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = do(router, http.MethodPut, "/drafts/"+id+"/modules", `{"device_id":"D1","entity_name":"Box_1","module_id":"1",
		"fields":[{"key":"3,01","value":"120","label":"C&C-01-T"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodPut, "/drafts/"+id+"/modules", `{"device_id":"D1","entity_name":"Box_1","module_id":"1",
		"fields":[{"key":"3,01","label":"Bogus"}]}`)
	assert.Equal(t, "invalid_label", decode(t, w)["code"])

	w = do(router, http.MethodPost, "/drafts/"+id+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodGet, "/drafts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/device_motherson/Acme/D1", nil)
	fields := decode(t, w)["data"].(map[string]interface{})["dynamic_fields"].([]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, "C&C-01-T", fields[0].(map[string]interface{})["activeValue"])
	assert.Equal(t, "120", fields[0].(map[string]interface{})["value"])

	w = do(router, http.MethodPost, "/drafts", `{"siteName":"Acme"}`)
	id = decode(t, w)["id"].(string)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, "/drafts/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/drafts/"+id, nil).Code)
}

func TestDashboardRoutes(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/device_motherson",
		`{"siteName":"Acme","Devices":[{"device_id":"D1","module_id":"1"}]}`).Code)
	recordEvent(t, router, "D1", 1, map[string]interface{}{"2,1": "1", "3,01": "50"})

	w := do(router, http.MethodGet, "/dashboard/Acme", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	machines := decode(t, w)["machines"].([]interface{})
	require.Len(t, machines, 4)
	assert.Equal(t, "maintenance", machines[0].(map[string]interface{})["status"])
	assert.Equal(t, "50", machines[0].(map[string]interface{})["timer"])

	w = do(router, http.MethodGet, "/dashboard/Acme/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Acme-board.xlsx")

	w = do(router, http.MethodGet, "/dashboard/Acme/export.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/dashboard/Nope", nil).Code)
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/ready", nil).Code)

	w := do(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "site_dashboard_")
}
