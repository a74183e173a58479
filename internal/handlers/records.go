package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/pipeline"
	"media-catalog/internal/policy"
	"media-catalog/internal/ratelimit"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger bodies spill to disk.
const maxUploadMemory = 32 << 20

// Upload accepts a multipart upload, validates it synchronously, stores
// the original, creates the catalog record and schedules processing. The
// response returns before any processing happens.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := userFrom(r)
	if user == nil {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.guard.CheckRateLimit(ratelimit.ActionUpload, user.ID) {
		writeJSONError(w, "Upload rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSONError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	declaredKind := mediatypes.Kind(r.FormValue("kind"))
	if !mediatypes.ValidKind(declaredKind) || declaredKind == mediatypes.KindOther {
		writeJSONError(w, "kind must be image or video", http.StatusBadRequest)
		return
	}

	fileName := filepath.Base(header.Filename)
	if err := h.guard.ValidateUpload(fileName, declaredKind); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, policy.ErrUnsupportedExtension) {
			status = http.StatusUnsupportedMediaType
		}
		writeJSONError(w, err.Error(), status)
		return
	}

	tags, err := h.stringArrayField(r.FormValue("tags"), "tags")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	devices, err := h.stringArrayField(r.FormValue("devices"), "devices")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec := &database.MediaRecord{
		ID:       uuid.NewString(),
		FileName: fileName,
		Kind:     declaredKind,
		Owner:    user.Username,
		Tags:     tags,
		Devices:  devices,
	}

	// Privileged uploaders skip the review queue.
	if user.IsPrivileged() {
		rec.Publication = database.PublicationPublished
		rec.Approver = user.Username
	}

	if _, err := h.store.SaveOriginal(pipeline.Collection, rec.ID, fileName, file); err != nil {
		logging.Error("Failed to store upload for %s: %v", user.Username, err)
		writeJSONError(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	if err := h.db.CreateRecord(ctx, rec); err != nil {
		logging.Error("Failed to create record: %v", err)
		writeJSONError(w, "Failed to create record", http.StatusInternalServerError)
		return
	}

	h.dispatcher.Dispatch(rec.ID)

	logging.Info("Upload accepted: %s (%s) by %s", rec.ID, fileName, user.Username)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, rec)
}

// stringArrayField decodes an optional JSON array form field.
func (h *Handlers) stringArrayField(raw, fieldName string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, errors.New(fieldName + " is not valid JSON")
	}
	if err := h.guard.ValidateStringArray(value, fieldName); err != nil {
		return nil, err
	}
	return policy.StringSlice(value), nil
}

// GetRecord returns a single record by id.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.db.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Record not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to load record %s: %v", id, err)
		writeJSONError(w, "Failed to load record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec)
}

// ListRecords returns a filtered, paginated record listing.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := database.RecordFilter{
		Query:       q.Get("q"),
		Tag:         q.Get("tag"),
		Device:      q.Get("device"),
		Owner:       q.Get("owner"),
		Publication: database.PublicationStatus(q.Get("publication")),
		Processing:  database.ProcessingStatus(q.Get("processing")),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		filter.PageSize = size
	}

	listing, err := h.db.ListRecords(r.Context(), filter)
	if err != nil {
		logging.Error("Failed to list records: %v", err)
		writeJSONError(w, "Failed to list records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

// Reprocess schedules a fresh processing run for an existing record.
func (h *Handlers) Reprocess(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.db.GetRecord(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Record not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to load record", http.StatusInternalServerError)
		return
	}

	h.dispatcher.Dispatch(id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "scheduled"})
}
