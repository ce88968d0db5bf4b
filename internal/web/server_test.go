package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/wabatch/internal/config"
	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/delivery"
	"github.com/JonMunkholm/wabatch/internal/storage"
)

// fakeBackend stands in for the automation backend and its login endpoints.
type fakeBackend struct {
	mu      sync.Mutex
	sent    []string
	logouts int
	auth    map[string]any
	authErr error
}

func (f *fakeBackend) SendText(_ context.Context, to, message string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+message)
	return nil
}

func (f *fakeBackend) SendMedia(_ context.Context, to string, media core.MediaPayload, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|media:"+media.Filename)
	return nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeBackend) AuthStart(context.Context) (map[string]any, error) {
	return f.auth, f.authErr
}

func (f *fakeBackend) AuthStatus(context.Context) (map[string]any, error) {
	return f.auth, f.authErr
}

func (f *fakeBackend) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Messaging.DefaultCountryCode = "961"
	cfg.Server.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *fakeBackend) {
	t.Helper()
	dir := t.TempDir()
	contactsDir := filepath.Join(dir, "contacts")

	store, err := storage.NewFileStore(contactsDir,
		storage.NewJSONMetadataStore(filepath.Join(contactsDir, storage.MetadataFileName)))
	require.NoError(t, err)

	backend := &fakeBackend{}
	svc := core.NewService(core.ServiceConfig{
		Store:        store,
		Templates:    storage.NewTemplateFile(filepath.Join(dir, "template.txt")),
		Dispatcher:   core.NewDispatcher(backend, core.DispatcherConfig{CountryCode: "961"}),
		Limiter:      core.NewSessionLimiter(1, 50*time.Millisecond),
		PreviewLimit: core.Limits(20, 15),
	})
	return NewServer(svc, backend, cfg), backend
}

type upload struct {
	filename string
	data     string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, f := range files {
		part, err := mw.CreateFormFile(field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const contactsCSV = "NUMBERS,name\n81111111,Ann\n82222222,Bob\n"

func uploadContacts(t *testing.T, s *Server) string {
	t.Helper()
	rec := serve(s, multipartRequest(t, "/api/contacts/upload", nil, map[string]upload{
		"contacts_file": {filename: "list.csv", data: contactsCSV},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	file := decode(t, rec)["file"].(map[string]any)
	return file["name"].(string)
}

func TestSend_Single(t *testing.T) {
	s, backend := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/send", map[string]string{
		"phone":   "81 777 444",
		"message": "hello",
	}, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "single", body["mode"])
	assert.Equal(t, "96181777444@c.us", body["target"])
	assert.Contains(t, body["message"], "Text sent to 96181777444@c.us.")
	assert.Equal(t, []string{"96181777444@c.us|hello"}, backend.sentMessages())
}

func TestSend_URLEncodedForm(t *testing.T) {
	s, backend := newTestServer(t, testConfig())

	form := url.Values{"phone": {"+1 415 555"}, "message": {"hi"}}
	req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"1415555@c.us|hi"}, backend.sentMessages())
}

func TestSend_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		wantCode string
	}{
		{"no target", map[string]string{"message": "hi"}, "MISSING_TARGET"},
		{"no content", map[string]string{"phone": "81777444"}, "MISSING_CONTENT"},
		{"bad phone", map[string]string{"phone": "abc", "message": "hi"}, "VALIDATION_ERROR"},
		{"bad stored reference", map[string]string{"existing_contacts_file": "notes.txt", "message": "hi"}, "INVALID_CONTACT_REFERENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, backend := newTestServer(t, testConfig())

			rec := serve(s, multipartRequest(t, "/api/send", tt.fields, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.wantCode, body["error_code"])
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, backend.sentMessages())
		})
	}
}

func TestSend_BatchFromUpload(t *testing.T) {
	s, backend := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/send",
		map[string]string{"message": "Hi {{name}}"},
		map[string]upload{"contacts_file": {filename: "list.csv", data: contactsCSV}},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "batch", body["mode"])
	assert.Contains(t, body["message"], "Batch sent successfully to 2 row(s).")
	batch := body["batch"].(map[string]any)
	assert.Equal(t, float64(2), batch["rows_processed"])
	assert.NotEmpty(t, batch["batch_id"])

	assert.Equal(t, []string{"96181111111@c.us|Hi Ann", "96182222222@c.us|Hi Bob"}, backend.sentMessages())
	assert.Equal(t, 1, backend.logouts)

	history := decode(t, serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/history", nil)))
	assert.Len(t, history["files"], 1, "uploaded batch file is stored")
}

func TestSend_BatchFromStoredFileWithMedia(t *testing.T) {
	s, backend := newTestServer(t, testConfig())
	name := uploadContacts(t, s)

	rec := serve(s, multipartRequest(t, "/api/send",
		map[string]string{"existing_contacts_file": name},
		map[string]upload{"media": {filename: "pic.png", data: "\x89PNG\r\n\x1a\nxxxx"}},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"96181111111@c.us|media:pic.png", "96182222222@c.us|media:pic.png"}, backend.sentMessages())
}

func TestSend_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 1024
	s, backend := newTestServer(t, cfg)

	rec := serve(s, multipartRequest(t, "/api/send",
		map[string]string{"phone": "81777444"},
		map[string]upload{"media": {filename: "big.bin", data: strings.Repeat("x", 8192)}},
	))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "MEDIA_TOO_LARGE", decode(t, rec)["error_code"])
	assert.Empty(t, backend.sentMessages())
}

func TestSend_HTMXErrorFragment(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := multipartRequest(t, "/api/send", map[string]string{"message": "hi"}, nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "MISSING_TARGET")
}

func TestContacts_Lifecycle(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	name := uploadContacts(t, s)
	assert.True(t, strings.HasSuffix(name, "_list.csv"), name)

	// preview
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/"+name+"/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "list.csv", body["file"].(map[string]any)["display_name"])
	preview := body["preview"].(map[string]any)
	assert.Equal(t, float64(2), preview["total_rows"])
	assert.Equal(t, []any{"NUMBERS", "name"}, preview["headers"])

	// metadata
	rec = serve(s, jsonRequest(t, http.MethodPost, "/api/contacts/"+name+"/metadata",
		map[string]any{"display_name": "  Clients  ", "description": "March list"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	history := decode(t, serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/history", nil)))
	files := history["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "Clients", files[0].(map[string]any)["display_name"])
	assert.Equal(t, "March list", files[0].(map[string]any)["description"])

	// download
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/"+name+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Clients.csv")
	assert.Contains(t, rec.Body.String(), "81111111")

	// content
	rec = serve(s, jsonRequest(t, http.MethodPost, "/api/contacts/"+name+"/content", map[string]any{
		"headers": []any{"numbers", "name"},
		"rows":    []any{[]any{"83333333", "Cat"}, []any{"", ""}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, map[string]any{"columns": float64(2), "rows": float64(1)}, body["summary"])
	assert.Equal(t, []any{"NUMBERS", "name"}, body["preview"].(map[string]any)["headers"])

	// delete
	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/contacts/"+name, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Contacts file deleted.", decode(t, rec)["message"])

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/"+name+"/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CONTACT_FILE_NOT_FOUND", decode(t, rec)["error_code"])
}

func TestContacts_Errors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	name := uploadContacts(t, s)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			"upload without file",
			multipartRequest(t, "/api/contacts/upload", nil, nil),
			http.StatusBadRequest, "CONTACTS_UPLOAD_MISSING",
		},
		{
			"upload wrong extension",
			multipartRequest(t, "/api/contacts/upload", nil, map[string]upload{"contacts_file": {filename: "list.txt", data: contactsCSV}}),
			http.StatusBadRequest, "INVALID_CONTACTS_FILE",
		},
		{
			"upload without NUMBERS",
			multipartRequest(t, "/api/contacts/upload", nil, map[string]upload{"contacts_file": {filename: "list.csv", data: "phone,name\n1,a\n"}}),
			http.StatusBadRequest, "EXCEL_MISSING_NUMBERS",
		},
		{
			"preview invalid reference",
			httptest.NewRequest(http.MethodGet, "/api/contacts/notes.txt/preview", nil),
			http.StatusBadRequest, "INVALID_CONTACT_REFERENCE",
		},
		{
			"empty display name",
			jsonRequest(t, http.MethodPost, "/api/contacts/"+name+"/metadata", map[string]any{"display_name": "  "}),
			http.StatusBadRequest, "INVALID_CONTACT_METADATA",
		},
		{
			"content without NUMBERS",
			jsonRequest(t, http.MethodPost, "/api/contacts/"+name+"/content", map[string]any{"headers": []any{"name"}, "rows": []any{}}),
			http.StatusBadRequest, "EXCEL_MISSING_NUMBERS",
		},
		{
			"content not an object",
			jsonRequest(t, http.MethodPost, "/api/contacts/"+name+"/content", []any{1, 2}),
			http.StatusBadRequest, "INVALID_CONTACTS_CONTENT",
		},
		{
			"delete missing file",
			httptest.NewRequest(http.MethodDelete, "/api/contacts/20200101_000000_000000_gone.csv", nil),
			http.StatusNotFound, "CONTACT_FILE_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode(t, rec)["error_code"])
		})
	}
}

func TestMessageTemplate(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	body := decode(t, serve(s, httptest.NewRequest(http.MethodGet, "/api/message-template", nil)))
	assert.Equal(t, storage.DefaultMessageTemplate, body["template"])

	rec := serve(s, jsonRequest(t, http.MethodPut, "/api/message-template", map[string]any{"template": "Hi\r\n{{name}}"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hi\n{{name}}", decode(t, rec)["template"])

	rec = serve(s, jsonRequest(t, http.MethodPut, "/api/message-template", map[string]any{"template": 5}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["error_code"])
}

func TestAuthPassthrough(t *testing.T) {
	s, backend := newTestServer(t, testConfig())
	backend.auth = map[string]any{"ok": true, "status": "qr", "qr": "data:image/png;base64,AA"}

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/auth/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, backend.auth, decode(t, rec))

	backend.authErr = delivery.ErrAuthStatusFailed.WithDetails("browser busy")
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AUTH_STATUS_FAILED", body["error_code"])
	assert.Equal(t, "browser busy", body["details"])
}

func TestPages(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	name := uploadContacts(t, s)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/?existing_contacts_file="+name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="`+name+`" selected>`)
	assert.Contains(t, rec.Body.String(), "Hello {{name}}")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/contacts/"+name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>Bob</td>")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/contacts/20200101_000000_000000_gone.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Selected contacts file was not found.")
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(1), body["session"].(map[string]any)["slots"])

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wabatch_http_requests_total")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/contacts/history", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestSendRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 100
	cfg.Rate.SendLimit = 1
	s, _ := newTestServer(t, cfg)

	first := serve(s, multipartRequest(t, "/api/send", map[string]string{"phone": "81777444", "message": "a"}, nil))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := serve(s, multipartRequest(t, "/api/send", map[string]string{"phone": "81777444", "message": "b"}, nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, second)["error_code"])

	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/api/contacts/history", nil)).Code)
}
