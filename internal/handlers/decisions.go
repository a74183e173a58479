package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
)

// DecisionRequest is the body for creating a review decision.
type DecisionRequest struct {
	Decision   string     `json:"decision"`
	Notes      string     `json:"notes,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
}

// CreateDecision records a review decision against a record and
// propagates its outcome to the record's publication status.
func (h *Handlers) CreateDecision(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == nil {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	recordID := mux.Vars(r)["id"]

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Decision != database.DecisionApproved && req.Decision != database.DecisionRejected {
		writeJSONError(w, "decision must be approved or rejected", http.StatusBadRequest)
		return
	}

	dec := &database.ApprovalDecision{
		RecordID: recordID,
		Reviewer: user.Username,
		Decision: req.Decision,
		Notes:    req.Notes,
	}
	if req.ReviewedAt != nil {
		dec.ReviewedAt = *req.ReviewedAt
	}

	if err := h.approvals.Record(r.Context(), dec); err != nil {
		logging.Error("Failed to record decision for %s: %v", recordID, err)
		writeJSONError(w, "Failed to record decision", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dec)
}

// ListDecisions returns the full review trail for a record, oldest first.
// A record with no decisions yields an empty list, not an error.
func (h *Handlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	recordID := mux.Vars(r)["id"]

	decisions, err := h.db.ListDecisionsForRecord(r.Context(), recordID)
	if err != nil {
		logging.Error("Failed to list decisions for %s: %v", recordID, err)
		writeJSONError(w, "Failed to list decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []database.ApprovalDecision{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, decisions)
}

// GetDecision returns one decision by id.
func (h *Handlers) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	dec, err := h.db.GetDecision(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Decision not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to load decision", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, dec)
}
