package transform

import (
	"fmt"
)

// Display/backdrop target dimensions and variant widths.
const (
	DisplayMaxWidth  = 1920
	DisplayMaxHeight = 1080
	BlurSourceWidth  = 80
	BlurSigma        = 20
	ThumbWidth       = 300
	TranscodeCRF     = 23
	PosterSeekSecond = 1
)

// ScaleFit builds an aspect-fit scale: the output fits within maxW x maxH,
// aspect ratio preserved, never upscaled.
func ScaleFit(src, dst string, maxW, maxH int) Command {
	filter := fmt.Sprintf(
		"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease",
		maxW, maxH)
	return Command{
		Name: "ffmpeg",
		Args: []string{"-y", "-i", src, "-vf", filter, dst},
	}
}

// BlurBackdrop builds the letterbox backdrop: downscale hard, gaussian blur,
// then cover-fit scale and crop to exactly w x h (fills the frame, may crop).
func BlurBackdrop(src, dst string, w, h int) Command {
	filter := fmt.Sprintf(
		"scale=%d:-1,gblur=sigma=%d,scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		BlurSourceWidth, BlurSigma, w, h, w, h)
	return Command{
		Name: "ffmpeg",
		Args: []string{"-y", "-i", src, "-vf", filter, dst},
	}
}

// Thumbnail builds a fixed-width scale with proportional height.
func Thumbnail(src, dst string, width int) Command {
	filter := fmt.Sprintf("scale=%d:-1", width)
	return Command{
		Name: "ffmpeg",
		Args: []string{"-y", "-i", src, "-vf", filter, dst},
	}
}

// Transcode builds the compatibility re-encode: H.264/AAC in MP4, width
// capped (height proportional and even), faststart so playback can begin
// before the download completes.
func Transcode(src, dst string) Command {
	filter := fmt.Sprintf("scale='min(%d,iw)':-2", DisplayMaxWidth)
	return Command{
		Name: "ffmpeg",
		Args: []string{
			"-y",
			"-i", src,
			"-c:v", "libx264",
			"-preset", "medium",
			"-crf", fmt.Sprintf("%d", TranscodeCRF),
			"-vf", filter,
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
			dst,
		},
	}
}

// ExtractFrame builds a single-frame still extraction. With seek true the
// frame is taken near the 1-second mark; without it, the earliest available
// frame, for clips shorter than a second.
func ExtractFrame(src, dst string, seek bool) Command {
	args := []string{"-y"}
	if seek {
		args = append(args, "-ss", fmt.Sprintf("%d", PosterSeekSecond))
	}
	args = append(args, "-i", src, "-vframes", "1", dst)
	return Command{Name: "ffmpeg", Args: args}
}

// FrameThumbnail builds a single-frame still scaled to a fixed width.
func FrameThumbnail(src, dst string, width int, seek bool) Command {
	args := []string{"-y"}
	if seek {
		args = append(args, "-ss", fmt.Sprintf("%d", PosterSeekSecond))
	}
	args = append(args,
		"-i", src,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", width),
		dst)
	return Command{Name: "ffmpeg", Args: args}
}

// ProbeMetadata builds the structured key/value probe used by the metadata
// extractor: dimensions, rotation, capture timestamp, duration.
func ProbeMetadata(src string) Command {
	return Command{
		Name: "ffprobe",
		Args: []string{
			"-v", "quiet",
			"-show_entries",
			"stream=width,height:stream_tags=rotate:format=duration:format_tags=creation_time",
			"-of", "default=noprint_wrappers=1",
			src,
		},
	}
}

// ProbeDuration builds the bare-number duration probe.
func ProbeDuration(src string) Command {
	return Command{
		Name: "ffprobe",
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "csv=p=0",
			src,
		},
	}
}

// Checksum builds the content checksum invocation. Output format is
// "<hex> <filename>".
func Checksum(path string) Command {
	return Command{
		Name: "sha256sum",
		Args: []string{path},
	}
}
