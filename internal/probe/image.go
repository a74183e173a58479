package probe

import (
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"media-catalog/internal/logging"
)

// fillFromImage supplements meta with EXIF capture data and, when the
// probe tool reported nothing, header-decoded dimensions.
func (e *Extractor) fillFromImage(path string, meta *Metadata) {
	if meta.TakenAt == "" || meta.Orientation == 0 {
		e.fillFromExif(path, meta)
	}
	if meta.Width == 0 || meta.Height == 0 {
		if w, h, ok := decodeDimensions(path); ok {
			meta.Width = w
			meta.Height = h
		}
	}
}

func (e *Extractor) fillFromExif(path string, meta *Metadata) {
	f, err := os.Open(path)
	if err != nil {
		logging.Warn("failed to open %s for exif: %v", path, err)
		return
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// Plenty of valid images carry no exif block.
		logging.Debug("no exif data in %s: %v", path, err)
		return
	}

	if meta.TakenAt == "" {
		if taken, err := x.DateTime(); err == nil {
			meta.TakenAt = taken.Format("2006-01-02T15:04:05")
		}
	}

	if meta.Orientation == 0 {
		if tag, err := x.Get(exif.Orientation); err == nil {
			if n, err := tag.Int(0); err == nil {
				meta.Orientation = n
			}
		}
	}
}

// decodeDimensions reads just the image header. The webp decoder is
// registered alongside the stdlib formats so every allowed image
// extension is covered.
func decodeDimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		logging.Debug("header decode failed for %s: %v", path, err)
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
