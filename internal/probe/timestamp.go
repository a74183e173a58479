package probe

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts lists the capture-time formats seen in the wild, in
// preference order. EXIF uses colon-separated dates; container metadata
// is usually RFC 3339 with or without fractional seconds.
var timestampLayouts = []string{
	"2006:01:02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeTimestamp converts a capture timestamp into the canonical
// YYYY-MM-DDTHH:MM:SS form. Timezone offsets and fractional seconds are
// dropped; the wall-clock reading is preserved as recorded.
func NormalizeTimestamp(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			return "", fmt.Errorf("timestamp %q has no date component", value)
		}
		return t.Format("2006-01-02T15:04:05"), nil
	}
	return "", fmt.Errorf("unrecognized timestamp format %q", value)
}
