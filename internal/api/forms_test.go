package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"yoyaku/internal/availability"
	"yoyaku/internal/deploy"
	"yoyaku/internal/events"
	"yoyaku/internal/publish"
	"yoyaku/internal/store"
)

const testAPIKey = "valid-key"

const salonConfig = `{
	"basic_info": {"form_name": "サロン予約", "store_name": "サロン青山"},
	"visit_count_selection": {"enabled": true, "options": [{"value": "first", "label": "初めて"}]},
	"menu_structure": {"categories": [{"id": "face", "name": "フェイシャル", "menus": [
		{"id": "basic", "name": "ベーシック", "price": 5000, "duration": 60,
		 "options": [{"id": "mask", "name": "パック", "price": 1000, "duration": 10}]}
	]}]}
}`

type errorResponse struct {
	Error string `json:"error"`
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := store.NewDB(filepath.Join(t.TempDir(), "forms.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deployer := &deploy.Local{Dir: t.TempDir(), BaseURL: "https://forms.example.com"}
	svc := publish.NewService(db, deployer, events.NewEventBus(), &logger)
	server := NewHTTPServer(":0", testAPIKey, svc, db, time.Second, time.Second, &logger)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("x-api-key", testAPIKey)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPIKeyRequired(t *testing.T) {
	srv := setupTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/forms/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPutAndGetForm(t *testing.T) {
	srv := setupTestServer(t)

	resp := do(t, srv, http.MethodPut, "/api/v1/forms/aoyama", `{"basic_info":{"form_name":"サロン予約"},"menu_structure":"oops"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved FormResponse
	decode(t, resp, &saved)
	assert.Equal(t, "aoyama", saved.ID)
	assert.Equal(t, 1, saved.Version)
	assert.Len(t, saved.Problems, 1)

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/aoyama", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got FormResponse
	decode(t, resp, &got)
	assert.Equal(t, "サロン予約", got.Name)
	assert.JSONEq(t, `{"basic_info":{"form_name":"サロン予約"},"menu_structure":"oops"}`, string(got.Config))

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/aoyama/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var normalized map[string]any
	decode(t, resp, &normalized)
	assert.Contains(t, normalized, "calendar_settings")

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Forms []FormResponse `json:"forms"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Forms, 1)
	assert.Nil(t, list.Forms[0].Config)
}

func TestFormErrors(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"missing form", http.MethodGet, "/api/v1/forms/missing", "", http.StatusNotFound},
		{"missing preview", http.MethodGet, "/api/v1/forms/missing/preview", "", http.StatusNotFound},
		{"missing publish", http.MethodPost, "/api/v1/forms/missing/publish", "", http.StatusNotFound},
		{"not an object", http.MethodPut, "/api/v1/forms/aoyama", `["a"]`, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/api/v1/forms/missing", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var e errorResponse
			decode(t, resp, &e)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestCreatePreviewPublish(t *testing.T) {
	srv := setupTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/v1/forms/", salonConfig)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created FormResponse
	decode(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/"+created.ID+"/preview", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, deploy.ContentType, resp.Header.Get("Content-Type"))
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(page, []byte("<!DOCTYPE html>")))

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/"+created.ID+"/publish", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first publish.Result
	decode(t, resp, &first)
	assert.False(t, first.Skipped)
	assert.Equal(t, "https://forms.example.com/"+created.ID+".html", first.PublicURL)

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/"+created.ID+"/publish", "")
	var second publish.Result
	decode(t, resp, &second)
	assert.True(t, second.Skipped)

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/"+created.ID+"/publish?force=true", "")
	var forced publish.Result
	decode(t, resp, &forced)
	assert.False(t, forced.Skipped)

	resp = do(t, srv, http.MethodDelete, "/api/v1/forms/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSubmissionPreview(t *testing.T) {
	srv := setupTestServer(t)
	resp := do(t, srv, http.MethodPut, "/api/v1/forms/aoyama", salonConfig)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/aoyama/submission-preview", `{
		"name": "山田花子", "phone": "090-1234-5678", "visit_count": "first",
		"menu_id": "basic", "option_ids": ["mask"], "date": "2025-01-10", "time": "14:00"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview SubmissionPreviewResponse
	decode(t, resp, &preview)
	assert.Equal(t, "お名前：山田花子\n"+
		"電話番号：090-1234-5678\n"+
		"来店回数：初めて\n"+
		"メニュー：フェイシャル > ベーシック, パック\n"+
		"希望日時：\n"+
		"2025年01月10日 14:00\n"+
		"メッセージ：", preview.Text)
	assert.Equal(t, 6000, preview.Price)
	assert.Equal(t, 70, preview.Duration)

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/aoyama/submission-preview", `{"phone": "090", "menu_id": "basic"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var verr ValidationResponse
	decode(t, resp, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, "お名前を入力してください", verr.Message)

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/aoyama/submission-preview", `{"menu_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/v1/forms/aoyama/submission-preview", `{"unknown": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMenuExport(t *testing.T) {
	srv := setupTestServer(t)
	resp := do(t, srv, http.MethodPut, "/api/v1/forms/aoyama", salonConfig)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/aoyama/menu.xlsx", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "aoyama-menu.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("メニュー")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMenuExportFileNameIsEncoded(t *testing.T) {
	srv := setupTestServer(t)
	resp := do(t, srv, http.MethodPut, "/api/v1/forms/青山", salonConfig)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/青山/menu.xlsx", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "青山-menu.xlsx", params["filename"])
}

func TestSlots(t *testing.T) {
	srv := setupTestServer(t)
	resp := do(t, srv, http.MethodPut, "/api/v1/forms/aoyama", salonConfig)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/aoyama/slots?week=2030-01-07", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview struct {
		BookingMode string             `json:"booking_mode"`
		Week        *availability.Grid `json:"week"`
	}
	decode(t, resp, &preview)
	assert.Equal(t, "calendar", preview.BookingMode)
	require.NotNil(t, preview.Week)
	require.Len(t, preview.Week.Days, 7)
	assert.Equal(t, "2030-01-07", preview.Week.Days[0])
	assert.Equal(t, "10:00", preview.Week.Times[0])

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/aoyama/slots?week=next", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/v1/forms/missing/slots", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
