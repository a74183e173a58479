package mediatypes

// Kind represents the declared kind of an uploaded media file.
type Kind string

const (
	// KindImage represents a still image upload.
	KindImage Kind = "image"
	// KindVideo represents a video upload.
	KindVideo Kind = "video"
	// KindOther represents an unrecognized extension.
	KindOther Kind = "other"
)

// ImageExtensions maps file extensions to whether they are accepted image uploads.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are accepted video uploads.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// KindForExtension returns the Kind an extension belongs to.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns KindOther if the extension is not in either allow-list.
func KindForExtension(ext string) Kind {
	if ImageExtensions[ext] {
		return KindImage
	}
	if VideoExtensions[ext] {
		return KindVideo
	}
	return KindOther
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsAllowed returns true if the extension is accepted for upload at all.
func IsAllowed(ext string) bool {
	return KindForExtension(ext) != KindOther
}

// ValidKind returns true for the two declarable upload kinds.
func ValidKind(k Kind) bool {
	return k == KindImage || k == KindVideo
}
