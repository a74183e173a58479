package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/fingerprint"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/probe"
	"media-catalog/internal/storage"
)

// ErrRunInProgress is returned when a record already has an active run.
var ErrRunInProgress = errors.New("processing run already in progress for record")

// Collection is the storage collection all catalog media lives under.
const Collection = "media"

// Pipeline executes the processing run for a record: fingerprint,
// metadata extraction, derivative generation, status bookkeeping. At most
// one run per record id is active at a time.
type Pipeline struct {
	db    *database.Database
	store *storage.Store
	fp    *fingerprint.Service
	probe *probe.Extractor
	gen   *media.Generator

	mu      sync.Mutex
	running map[string]bool
}

// New assembles a Pipeline from its stages.
func New(db *database.Database, store *storage.Store, fp *fingerprint.Service, extractor *probe.Extractor, gen *media.Generator) *Pipeline {
	return &Pipeline{
		db:      db,
		store:   store,
		fp:      fp,
		probe:   extractor,
		gen:     gen,
		running: make(map[string]bool),
	}
}

// Process runs the full pipeline for recordID. Structural failures mark
// the record failed and sweep any orphaned derivatives; per-variant
// failures inside generation do not fail the run.
func (p *Pipeline) Process(ctx context.Context, recordID string) error {
	if !p.acquire(recordID) {
		return fmt.Errorf("%w: %s", ErrRunInProgress, recordID)
	}
	defer p.release(recordID)
	defer p.store.RemoveScratch(recordID)

	metrics.PipelineActiveRuns.Inc()
	defer metrics.PipelineActiveRuns.Dec()

	rec, err := p.db.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", recordID, err)
	}

	start := time.Now()
	kind := string(rec.Kind)

	if err := p.run(ctx, rec); err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(kind, "failure").Inc()
		p.fail(ctx, rec, err)
		return err
	}

	metrics.PipelineRunsTotal.WithLabelValues(kind, "success").Inc()
	metrics.PipelineRunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	logging.Info("Processing completed for record %s (%s)", rec.ID, rec.FileName)
	return nil
}

func (p *Pipeline) run(ctx context.Context, rec *database.MediaRecord) error {
	srcPath := p.store.FilePath(Collection, rec.ID, rec.FileName)
	if _, err := os.Stat(srcPath); err != nil {
		return fmt.Errorf("original file missing: %w", err)
	}

	if err := p.db.SetProcessingStatus(ctx, rec.ID, database.ProcessingRunning); err != nil {
		return fmt.Errorf("failed to mark record processing: %w", err)
	}

	p.fingerprintStage(ctx, rec, srcPath)
	p.metadataStage(ctx, rec, srcPath)

	var derived media.Result
	var err error
	switch rec.Kind {
	case mediatypes.KindImage:
		derived, err = p.gen.GenerateImage(ctx, Collection, rec.ID, srcPath)
	case mediatypes.KindVideo:
		derived, err = p.gen.GenerateVideo(ctx, Collection, rec.ID, srcPath)
	default:
		// Nothing to derive; the original is the only asset.
	}
	if err != nil {
		return err
	}

	if len(derived) > 0 {
		if err := p.db.SetDerived(ctx, rec.ID, derived); err != nil {
			return fmt.Errorf("failed to store derivative map: %w", err)
		}
	}

	if err := p.db.SetProcessingStatus(ctx, rec.ID, database.ProcessingCompleted); err != nil {
		return fmt.Errorf("failed to mark record completed: %w", err)
	}
	return nil
}

// fingerprintStage hashes the original and records the checksum. A match
// against an earlier record is advisory: counted and logged, never
// blocking.
func (p *Pipeline) fingerprintStage(ctx context.Context, rec *database.MediaRecord, srcPath string) {
	sum, err := p.fp.Fingerprint(ctx, srcPath)
	if err != nil {
		logging.Warn("fingerprint failed for %s: %v", rec.ID, err)
		return
	}
	if err := p.db.SetChecksum(ctx, rec.ID, sum); err != nil {
		logging.Warn("failed to store checksum for %s: %v", rec.ID, err)
		return
	}

	prior, err := p.db.FindFirstByChecksum(ctx, sum, rec.ID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Warn("duplicate lookup failed for %s: %v", rec.ID, err)
		}
		return
	}
	metrics.DuplicateUploadsDetected.Inc()
	logging.Info("Record %s duplicates earlier upload %s (checksum %s)", rec.ID, prior.ID, sum)
}

func (p *Pipeline) metadataStage(ctx context.Context, rec *database.MediaRecord, srcPath string) {
	meta := p.probe.Extract(ctx, srcPath, rec.Kind)
	if meta == (probe.Metadata{}) {
		return
	}
	if err := p.db.SetMetadata(ctx, rec.ID, meta.Width, meta.Height, meta.Orientation, meta.TakenAt, meta.Duration); err != nil {
		logging.Warn("failed to store metadata for %s: %v", rec.ID, err)
	}
}

// fail marks the record failed and removes any derivatives that made it
// to their permanent paths before the run collapsed.
func (p *Pipeline) fail(ctx context.Context, rec *database.MediaRecord, cause error) {
	logging.Error("Processing failed for record %s: %v", rec.ID, cause)

	if err := p.db.SetProcessingFailure(ctx, rec.ID, cause.Error()); err != nil {
		logging.Error("failed to record processing failure for %s: %v", rec.ID, err)
	}
	p.store.CleanupDerivatives(Collection, rec.ID, rec.FileName)
}

func (p *Pipeline) acquire(recordID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running[recordID] {
		return false
	}
	p.running[recordID] = true
	return true
}

func (p *Pipeline) release(recordID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, recordID)
}
