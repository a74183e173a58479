package probe

import (
	"context"
	"strconv"
	"strings"

	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/transform"
)

// Metadata holds the technical properties extracted from a media file.
// Zero values mean the property could not be determined; extraction is
// best-effort and never fails the pipeline.
type Metadata struct {
	Width       int
	Height      int
	Orientation int
	TakenAt     string
	Duration    float64
}

// Extractor reads media metadata using the external probe tool, with
// in-process decoders as a fallback for images.
type Extractor struct {
	exec transform.Executor
}

// New creates an Extractor using the given executor.
func New(exec transform.Executor) *Extractor {
	return &Extractor{exec: exec}
}

// Extract probes path for dimensions, orientation, capture time and
// duration. Missing or malformed properties are logged and left at their
// zero values; the returned Metadata is always usable.
func (e *Extractor) Extract(ctx context.Context, path string, kind mediatypes.Kind) Metadata {
	var meta Metadata

	out, err := e.exec.Run(ctx, transform.ProbeMetadata(path))
	if err != nil {
		logging.Warn("metadata probe failed for %s: %v", path, err)
	} else {
		meta = parseProbeOutput(string(out))
	}

	if kind == mediatypes.KindImage {
		e.fillFromImage(path, &meta)
	}

	if kind == mediatypes.KindVideo && meta.Duration == 0 {
		if d, ok := e.probeDuration(ctx, path); ok {
			meta.Duration = d
		}
	}

	return meta
}

func (e *Extractor) probeDuration(ctx context.Context, path string) (float64, bool) {
	out, err := e.exec.Run(ctx, transform.ProbeDuration(path))
	if err != nil {
		logging.Warn("duration probe failed for %s: %v", path, err)
		return 0, false
	}
	d, err := ParseDuration(strings.TrimSpace(string(out)))
	if err != nil {
		logging.Warn("unparseable duration for %s: %v", path, err)
		return 0, false
	}
	return d, true
}

// parseProbeOutput parses flat key=value probe output. Later occurrences
// of a key win, matching how the tool emits per-stream entries.
func parseProbeOutput(out string) Metadata {
	var meta Metadata

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok || value == "" || value == "N/A" {
			continue
		}

		switch key {
		case "width":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				meta.Width = n
			}
		case "height":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				meta.Height = n
			}
		case "TAG:rotate":
			if n, err := strconv.Atoi(value); err == nil {
				meta.Orientation = n
			}
		case "duration":
			if d, err := ParseDuration(value); err == nil {
				meta.Duration = d
			}
		case "TAG:creation_time":
			if ts, err := NormalizeTimestamp(value); err == nil {
				meta.TakenAt = ts
			}
		}
	}

	return meta
}

// ParseDuration accepts either bare seconds ("12.48") or clock notation
// ("1:02:03", "4:05") and returns total seconds.
func ParseDuration(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, strconv.ErrSyntax
	}

	if !strings.Contains(value, ":") {
		return strconv.ParseFloat(value, 64)
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, strconv.ErrSyntax
	}

	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, strconv.ErrSyntax
		}
		total = total*60 + n
	}
	return total, nil
}
