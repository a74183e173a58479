package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"media-catalog/internal/approval"
	"media-catalog/internal/database"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/policy"
	"media-catalog/internal/ratelimit"
	"media-catalog/internal/storage"
)

// recordingDispatcher captures dispatched record ids.
type recordingDispatcher struct {
	ids []string
}

func (d *recordingDispatcher) Dispatch(recordID string) {
	d.ids = append(d.ids, recordID)
}

type testEnv struct {
	h          *Handlers
	db         *database.Database
	store      *storage.Store
	dispatcher *recordingDispatcher
	router     *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()

	db, err := database.New(context.Background(), filepath.Join(base, "catalog.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.New(filepath.Join(base, "files"), filepath.Join(base, "scratch"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	dispatcher := &recordingDispatcher{}
	guard := policy.NewGuard(ratelimit.New(ratelimit.DefaultLimits()))
	h := New(db, store, guard, dispatcher, approval.New(db))

	router := mux.NewRouter()
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.Logout).Methods("POST")
	router.HandleFunc("/api/auth/check", h.CheckAuth).Methods("GET")
	router.HandleFunc("/api/records", h.Upload).Methods("POST")
	router.HandleFunc("/api/records", h.ListRecords).Methods("GET")
	router.HandleFunc("/api/records/{id}", h.GetRecord).Methods("GET")
	router.HandleFunc("/api/records/{id}/process", h.requireRole(database.RoleAdmin, h.Reprocess)).Methods("POST")
	router.HandleFunc("/api/records/{id}/decisions", h.requireRole(database.RoleReviewer, h.CreateDecision)).Methods("POST")
	router.HandleFunc("/api/records/{id}/decisions", h.ListDecisions).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	return &testEnv{h: h, db: db, store: store, dispatcher: dispatcher, router: router}
}

// loginAs creates a user with the given role and returns its session cookie.
func (e *testEnv) loginAs(t *testing.T, username, role string) *http.Cookie {
	t.Helper()
	user, err := e.db.CreateUser(context.Background(), username, "password123", role)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, err := e.db.CreateSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return &http.Cookie{Name: SessionCookieName, Value: token}
}

// do routes the request through AuthMiddleware like production wiring.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.h.AuthMiddleware(e.router).ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, fileName, kind, tags, devices string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("media payload")); err != nil {
		t.Fatal(err)
	}
	_ = w.WriteField("kind", kind)
	if tags != "" {
		_ = w.WriteField("tags", tags)
	}
	if devices != "" {
		_ = w.WriteField("devices", devices)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func kindFor(fileName string) mediatypes.Kind {
	return mediatypes.KindForExtension(strings.ToLower(filepath.Ext(fileName)))
}

func TestLoginLifecycle(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.db.CreateUser(context.Background(), "alice", "password123", database.RoleUploader); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(LoginRequest{Username: "alice", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := e.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Username != "alice" || resp.Role != database.RoleUploader {
		t.Errorf("resp = %+v", resp)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != SessionCookieName || cookies[0].Value == "" {
		t.Fatal("login should set a session cookie")
	}

	check := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	check.AddCookie(cookies[0])
	if got := e.do(check); got.Code != http.StatusOK {
		t.Errorf("check status = %d", got.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.db.CreateUser(context.Background(), "alice", "password123", database.RoleUploader); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(LoginRequest{Username: "alice", Password: "nope"})
	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginRateLimitedPerAddress(t *testing.T) {
	e := newTestEnv(t)

	body, _ := json.Marshal(LoginRequest{Username: "ghost", Password: "nope"})
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.RemoteAddr = "203.0.113.5:1000"
		last = e.do(req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("sixth attempt status = %d, want 429", last)
	}

	// A different address still gets through to credential checking.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.99:1000"
	if got := e.do(req).Code; got != http.StatusUnauthorized {
		t.Errorf("other address status = %d, want 401", got)
	}
}

func TestUnauthenticatedAPIRejected(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/records", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUploadCreatesPendingRecordAndDispatches(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.loginAs(t, "bob", database.RoleUploader)

	body, contentType := multipartUpload(t, "photo.jpg", "image", `["vacation","beach"]`, `["phone"]`)
	req := httptest.NewRequest(http.MethodPost, "/api/records", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)

	rec := e.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var created database.MediaRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Publication != database.PublicationPending {
		t.Errorf("Publication = %q, want pending for a regular uploader", created.Publication)
	}
	if created.Processing != database.ProcessingPending {
		t.Errorf("Processing = %q, want pending", created.Processing)
	}
	if created.Owner != "bob" {
		t.Errorf("Owner = %q", created.Owner)
	}
	if len(created.Tags) != 2 || created.Tags[0] != "vacation" {
		t.Errorf("Tags = %v", created.Tags)
	}

	if len(e.dispatcher.ids) != 1 || e.dispatcher.ids[0] != created.ID {
		t.Errorf("dispatched = %v, want exactly the new record", e.dispatcher.ids)
	}
}

func TestUploadAdminFastPathPublishes(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.loginAs(t, "root", database.RoleAdmin)

	body, contentType := multipartUpload(t, "clip.mp4", "video", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/records", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)

	rec := e.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var created database.MediaRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Publication != database.PublicationPublished {
		t.Errorf("Publication = %q, want published for admin upload", created.Publication)
	}
	if created.Approver != "root" {
		t.Errorf("Approver = %q, want the uploader itself", created.Approver)
	}
	// Fast-path publication does not skip processing.
	if len(e.dispatcher.ids) != 1 {
		t.Error("admin upload must still be dispatched for processing")
	}

	decisions, err := e.db.ListDecisionsForRecord(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 0 {
		t.Errorf("fast-path publish should create no decisions, got %d", len(decisions))
	}
}

func TestUploadValidationFailures(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.loginAs(t, "carol", database.RoleUploader)

	tests := []struct {
		name       string
		fileName   string
		kind       string
		tags       string
		wantStatus int
	}{
		{"unsupported extension", "malware.exe", "image", "", http.StatusUnsupportedMediaType},
		{"kind mismatch", "clip.mp4", "image", "", http.StatusBadRequest},
		{"invalid kind value", "photo.jpg", "audio", "", http.StatusBadRequest},
		{"tags not an array", "photo.jpg", "image", `"vacation"`, http.StatusBadRequest},
		{"tags with non-string element", "photo.jpg", "image", `["ok", 7]`, http.StatusBadRequest},
		{"tags invalid json", "photo.jpg", "image", `[unterminated`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.fileName, tt.kind, tt.tags, "")
			req := httptest.NewRequest(http.MethodPost, "/api/records", body)
			req.Header.Set("Content-Type", contentType)
			req.AddCookie(cookie)

			if got := e.do(req).Code; got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}

	if len(e.dispatcher.ids) != 0 {
		t.Errorf("rejected uploads must not be dispatched: %v", e.dispatcher.ids)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.loginAs(t, "dave", database.RoleUploader)

	req := httptest.NewRequest(http.MethodGet, "/api/records/missing-id", nil)
	req.AddCookie(cookie)
	if got := e.do(req).Code; got != http.StatusNotFound {
		t.Errorf("status = %d, want 404", got)
	}
}

func TestListRecordsFiltered(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.loginAs(t, "erin", database.RoleUploader)

	for _, name := range []string{"sunset.jpg", "sunrise.jpg", "clip.mp4"} {
		rec := &database.MediaRecord{FileName: name, Kind: kindFor(name), Owner: "erin"}
		if err := e.db.CreateRecord(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/records?q=sun", nil)
	req.AddCookie(cookie)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var listing database.RecordListing
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if listing.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", listing.TotalItems)
	}
}

func TestDecisionFlow(t *testing.T) {
	e := newTestEnv(t)
	uploader := e.loginAs(t, "frank", database.RoleUploader)
	reviewer := e.loginAs(t, "grace", database.RoleReviewer)

	target := &database.MediaRecord{FileName: "photo.jpg", Kind: kindFor("photo.jpg"), Owner: "frank"}
	if err := e.db.CreateRecord(context.Background(), target); err != nil {
		t.Fatal(err)
	}

	// Uploaders may not review.
	body, _ := json.Marshal(DecisionRequest{Decision: database.DecisionApproved})
	req := httptest.NewRequest(http.MethodPost, "/api/records/"+target.ID+"/decisions", bytes.NewReader(body))
	req.AddCookie(uploader)
	if got := e.do(req).Code; got != http.StatusForbidden {
		t.Fatalf("uploader decision status = %d, want 403", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/records/"+target.ID+"/decisions", bytes.NewReader(body))
	req.AddCookie(reviewer)
	rec := e.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reviewer decision status = %d: %s", rec.Code, rec.Body.String())
	}

	got, err := e.db.GetRecord(context.Background(), target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Publication != database.PublicationPublished {
		t.Errorf("Publication = %q, want published after approval", got.Publication)
	}
	if got.Approver != "grace" {
		t.Errorf("Approver = %q", got.Approver)
	}
}

func TestListDecisionsEmptyIsNotAnError(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.loginAs(t, "heidi", database.RoleUploader)

	target := &database.MediaRecord{FileName: "photo.jpg", Kind: kindFor("photo.jpg"), Owner: "heidi"}
	if err := e.db.CreateRecord(context.Background(), target); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/records/"+target.ID+"/decisions", nil)
	req.AddCookie(cookie)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty array", rec.Body.String())
	}
}

func TestHealthOpenWithoutSession(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without a session", rec.Code)
	}
}
