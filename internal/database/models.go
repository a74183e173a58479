package database

import (
	"time"

	"media-catalog/internal/mediatypes"
)

// PublicationStatus is the review-visibility axis of a record. It is
// independent of processing health: a record can be published while its
// derivatives are still pending, or fail processing while remaining
// published from an earlier successful run.
type PublicationStatus string

const (
	// PublicationPending means the record awaits a review decision.
	PublicationPending PublicationStatus = "pending"
	// PublicationPublished means the record is visible to playback clients.
	PublicationPublished PublicationStatus = "published"
	// PublicationRejected means a reviewer declined the record.
	PublicationRejected PublicationStatus = "rejected"
)

// ProcessingStatus is the derivation-health axis of a record.
type ProcessingStatus string

const (
	// ProcessingPending means the pipeline has not started.
	ProcessingPending ProcessingStatus = "pending"
	// ProcessingRunning means a background run is in flight.
	ProcessingRunning ProcessingStatus = "processing"
	// ProcessingCompleted means the kind-specific generation stage ran to
	// completion. Individual derivatives may still be missing.
	ProcessingCompleted ProcessingStatus = "completed"
	// ProcessingFailed means a structural error stopped the run.
	ProcessingFailed ProcessingStatus = "failed"
)

// Derived-asset map keys.
const (
	DerivedDisplay = "display"
	DerivedBlur    = "blur"
	DerivedThumb   = "thumb"
	DerivedVideo   = "video"
	DerivedPoster  = "poster"
)

// MediaRecord is a catalog entry for one uploaded image or video.
// Derived fields and processing status are mutated exclusively by the
// pipeline; publication status exclusively by approval propagation.
type MediaRecord struct {
	ID              string            `json:"id"`
	FileName        string            `json:"fileName"`
	Kind            mediatypes.Kind   `json:"kind"`
	Publication     PublicationStatus `json:"publicationStatus"`
	Processing      ProcessingStatus  `json:"processingStatus"`
	ProcessingError string            `json:"processingError,omitempty"`
	Owner           string            `json:"owner"`
	Approver        string            `json:"approver,omitempty"`
	Checksum        string            `json:"checksum,omitempty"`

	// Capture metadata, all optional; zero values mean "not extracted".
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Orientation int     `json:"orientation,omitempty"`
	TakenAt     string  `json:"takenAt,omitempty"`
	Duration    float64 `json:"duration,omitempty"`

	Tags    []string `json:"tags,omitempty"`
	Devices []string `json:"devices,omitempty"`

	// Derived maps variant kind (display/blur/thumb/video/poster) to the
	// relative URL of the generated asset. A missing key means the variant
	// was not generated.
	Derived map[string]string `json:"derived,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Decision outcomes for a review action.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ApprovalDecision is one immutable review action against a record.
// Only the review timestamp is filled in after creation.
type ApprovalDecision struct {
	ID         string    `json:"id"`
	RecordID   string    `json:"recordId"`
	Reviewer   string    `json:"reviewer"`
	Decision   string    `json:"decision"`
	Notes      string    `json:"notes,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RecordFilter narrows ListRecords results. Zero values mean "no filter".
type RecordFilter struct {
	Query       string // substring match on file name
	Tag         string // tag-set containment
	Device      string // device-scope containment
	Owner       string
	Publication PublicationStatus
	Processing  ProcessingStatus
	Page        int
	PageSize    int
}

// RecordListing is one page of filtered records.
type RecordListing struct {
	Items      []MediaRecord `json:"items"`
	TotalItems int           `json:"totalItems"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
}
