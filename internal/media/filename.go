package media

import (
	"path/filepath"
	"regexp"
)

// maxFilenameLength bounds stored filenames; longer names are truncated with
// the extension preserved.
const maxFilenameLength = 200

var unsafePathChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename makes an uploaded filename safe for on-disk storage.
// Unsafe path characters become underscores; overly long names are truncated
// while keeping the extension.
func SanitizeFilename(name string) string {
	safe := unsafePathChars.ReplaceAllString(name, "_")

	if len(safe) > maxFilenameLength {
		ext := filepath.Ext(safe)
		base := safe[:len(safe)-len(ext)]
		if len(ext) > maxFilenameLength {
			ext = ext[:maxFilenameLength]
		}
		cut := maxFilenameLength - len(ext)
		if cut > len(base) {
			cut = len(base)
		}
		safe = base[:cut] + ext
	}

	return safe
}
