package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
	"media-catalog/internal/storage"
	"media-catalog/internal/transform"
)

// Deterministic derivative filenames. Reruns overwrite in place.
const (
	DisplayFile = "display.jpg"
	BlurFile    = "blur.jpg"
	ThumbFile   = "thumb.jpg"
	VideoFile   = "video.mp4"
	PosterFile  = "poster.jpg"
)

// Generator produces the derivative set for a record. Each variant is
// generated into the record's scratch directory and only moved into the
// collection once the tool reports success, so a failed run never leaves
// a partial file at its final path.
type Generator struct {
	store *storage.Store
	exec  transform.Executor
}

// NewGenerator creates a Generator backed by store and exec.
func NewGenerator(store *storage.Store, exec transform.Executor) *Generator {
	return &Generator{store: store, exec: exec}
}

// Result maps derivative keys to collection-relative filenames for the
// variants that were successfully produced.
type Result map[string]string

// GenerateImage produces the display, blur and thumb variants from the
// original image at srcPath. Variant failures are isolated: each failure
// is logged and the remaining variants are still attempted.
func (g *Generator) GenerateImage(ctx context.Context, collection, recordID, srcPath string) (Result, error) {
	scratch, err := g.store.EnsureScratchDir(recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir for %s: %w", recordID, err)
	}

	result := Result{}

	g.variant(ctx, database.DerivedDisplay, collection, recordID, DisplayFile, result,
		transform.ScaleFit(srcPath, filepath.Join(scratch, DisplayFile), transform.DisplayMaxWidth, transform.DisplayMaxHeight))

	g.variant(ctx, database.DerivedBlur, collection, recordID, BlurFile, result,
		transform.BlurBackdrop(srcPath, filepath.Join(scratch, BlurFile), transform.DisplayMaxWidth, transform.DisplayMaxHeight))

	g.imageThumbVariant(ctx, collection, recordID, srcPath, scratch, result)

	return result, nil
}

// imageThumbVariant renders the thumbnail with the external tool, then
// in-process when the tool cannot. Images are the only kind with a
// decode path that does not need the tool suite.
func (g *Generator) imageThumbVariant(ctx context.Context, collection, recordID, srcPath, scratch string, result Result) {
	start := time.Now()
	scratchPath := filepath.Join(scratch, ThumbFile)

	err := g.runAndVerify(ctx, transform.Thumbnail(srcPath, scratchPath, transform.ThumbWidth), scratchPath)
	if err != nil {
		logging.Info("thumbnail tool failed for %s, rendering in-process: %v", recordID, err)
		err = renderThumbnail(srcPath, scratchPath)
	}
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedThumb, "failure").Inc()
		logging.Error("thumbnail failed for %s: %v", recordID, err)
		return
	}

	placed, err := g.store.Place(scratchPath, collection, recordID, ThumbFile)
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedThumb, "failure").Inc()
		logging.Error("failed to place thumbnail for %s: %v", recordID, err)
		return
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedThumb, "success").Inc()
	metrics.DerivativeGenerationDuration.WithLabelValues(database.DerivedThumb).Observe(time.Since(start).Seconds())
	result[database.DerivedThumb] = placed
}

// renderThumbnail decodes and resizes the image in-process.
func renderThumbnail(srcPath, dstPath string) error {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(srcPath), err)
	}
	thumb := imaging.Resize(img, transform.ThumbWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, dstPath); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}

// GenerateVideo produces the playable transcode, a poster frame, a frame
// thumbnail and a blurred backdrop from the original video at srcPath.
// The blur variant is derived from the placed poster, so it is only
// attempted once the poster has been verified on disk.
func (g *Generator) GenerateVideo(ctx context.Context, collection, recordID, srcPath string) (Result, error) {
	scratch, err := g.store.EnsureScratchDir(recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir for %s: %w", recordID, err)
	}

	result := Result{}

	g.variant(ctx, database.DerivedVideo, collection, recordID, VideoFile, result,
		transform.Transcode(srcPath, filepath.Join(scratch, VideoFile)))

	g.posterVariant(ctx, collection, recordID, srcPath, scratch, result)

	g.frameThumbVariant(ctx, collection, recordID, srcPath, scratch, result)

	if _, ok := result[database.DerivedPoster]; ok {
		posterPath := g.store.FilePath(collection, recordID, PosterFile)
		g.variant(ctx, database.DerivedBlur, collection, recordID, BlurFile, result,
			transform.BlurBackdrop(posterPath, filepath.Join(scratch, BlurFile), transform.DisplayMaxWidth, transform.DisplayMaxHeight))
	} else {
		logging.Warn("skipping blur for %s: no poster to derive from", recordID)
	}

	return result, nil
}

// variant runs cmd, verifies the output and places it into the
// collection, recording the placed name in result. Failure leaves result
// untouched.
func (g *Generator) variant(ctx context.Context, key, collection, recordID, filename string, result Result, cmd transform.Command) {
	start := time.Now()

	scratchPath := filepath.Join(g.store.ScratchDir(recordID), filename)
	if err := g.runAndVerify(ctx, cmd, scratchPath); err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(key, "failure").Inc()
		logging.Error("derivative %s failed for %s: %v", key, recordID, err)
		return
	}

	placed, err := g.store.Place(scratchPath, collection, recordID, filename)
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(key, "failure").Inc()
		logging.Error("failed to place %s for %s: %v", key, recordID, err)
		return
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues(key, "success").Inc()
	metrics.DerivativeGenerationDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())
	result[key] = placed
}

// posterVariant extracts a still frame, retrying from the very first
// frame when the seek-offset extraction produces nothing. Very short
// clips have no frame at the seek offset.
func (g *Generator) posterVariant(ctx context.Context, collection, recordID, srcPath, scratch string, result Result) {
	start := time.Now()
	scratchPath := filepath.Join(scratch, PosterFile)

	err := g.runAndVerify(ctx, transform.ExtractFrame(srcPath, scratchPath, true), scratchPath)
	if err != nil {
		logging.Info("poster seek extraction failed for %s, retrying without seek: %v", recordID, err)
		err = g.runAndVerify(ctx, transform.ExtractFrame(srcPath, scratchPath, false), scratchPath)
	}
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedPoster, "failure").Inc()
		logging.Error("poster extraction failed for %s: %v", recordID, err)
		return
	}

	placed, err := g.store.Place(scratchPath, collection, recordID, PosterFile)
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedPoster, "failure").Inc()
		logging.Error("failed to place poster for %s: %v", recordID, err)
		return
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedPoster, "success").Inc()
	metrics.DerivativeGenerationDuration.WithLabelValues(database.DerivedPoster).Observe(time.Since(start).Seconds())
	result[database.DerivedPoster] = placed
}

func (g *Generator) frameThumbVariant(ctx context.Context, collection, recordID, srcPath, scratch string, result Result) {
	start := time.Now()
	scratchPath := filepath.Join(scratch, ThumbFile)

	err := g.runAndVerify(ctx, transform.FrameThumbnail(srcPath, scratchPath, transform.ThumbWidth, true), scratchPath)
	if err != nil {
		err = g.runAndVerify(ctx, transform.FrameThumbnail(srcPath, scratchPath, transform.ThumbWidth, false), scratchPath)
	}
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedThumb, "failure").Inc()
		logging.Error("frame thumbnail failed for %s: %v", recordID, err)
		return
	}

	placed, err := g.store.Place(scratchPath, collection, recordID, ThumbFile)
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedThumb, "failure").Inc()
		logging.Error("failed to place frame thumbnail for %s: %v", recordID, err)
		return
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues(database.DerivedThumb, "success").Inc()
	metrics.DerivativeGenerationDuration.WithLabelValues(database.DerivedThumb).Observe(time.Since(start).Seconds())
	result[database.DerivedThumb] = placed
}

// runAndVerify executes cmd and confirms a non-empty output file exists.
// The tools sometimes exit zero without writing anything.
func (g *Generator) runAndVerify(ctx context.Context, cmd transform.Command, outPath string) error {
	if _, err := g.exec.Run(ctx, cmd); err != nil {
		return err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("tool succeeded but %s is missing: %w", filepath.Base(outPath), err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("tool succeeded but %s is empty", filepath.Base(outPath))
	}
	return nil
}
