package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transhub/internal/coordinator"
	_ "transhub/internal/engine/debugengine"
	"transhub/internal/httpapi"
	"transhub/internal/policy"
	"transhub/internal/repository"
	"transhub/internal/repository/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	c := coordinator.New(store, coordinator.Config{
		BatchSize:    10,
		Retry:        policy.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		CacheMaxSize: 100,
		CacheTTL:     time.Hour,
	})
	require.NoError(t, c.Initialize(context.Background(), "debug", nil))
	t.Cleanup(func() { _ = c.Close() })

	router := httpapi.NewRouter(httpapi.NewHandler(c))
	return httptest.NewServer(router)
}

func TestPostRequest_AcceptsValidRequest(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"target_langs": []string{"fr"},
		"text":         "Hello",
		"business_id":  "greeting",
	})
	resp, err := http.Post(srv.URL+"/v1/requests", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestPostRequest_RejectsEmptyTargetLangs(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"text": "Hello"})
	resp, err := http.Post(srv.URL+"/v1/requests", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessAndGetTranslation_RoundTrip(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"target_langs": []string{"fr"},
		"text":         "Hello",
		"business_id":  "greeting",
	})
	resp, err := http.Post(srv.URL+"/v1/requests", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	processResp, err := http.Post(srv.URL+"/v1/process/fr", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer processResp.Body.Close()
	require.Equal(t, http.StatusOK, processResp.StatusCode)
	require.Equal(t, "application/x-ndjson", processResp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(processResp.Body)
	require.True(t, scanner.Scan())
	var result map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &result))
	require.Equal(t, "TRANSLATED", result["Status"])

	getResp, err := http.Get(srv.URL + "/v1/translations?business_id=greeting&lang=fr")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestGetTranslation_MissingParamsIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/translations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTranslation_UnknownBusinessIDIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/translations?business_id=nope&lang=fr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostGC_ReturnsCounts(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/gc", "application/json", bytes.NewReader([]byte(`{"dry_run": true}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var counts map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&counts))
	require.Contains(t, counts, "DeletedJobs")
}
