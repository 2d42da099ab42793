package matching

import (
	"path"
	"strings"
)

// audioExtensions is the allow-list of file types worth downloading.
var audioExtensions = map[string]struct{}{
	".flac": {},
	".wav":  {},
	".m4a":  {},
	".ogg":  {},
	".aac":  {},
	".wma":  {},
	".mp3":  {},
}

// IsAudioFile reports whether the filename carries a recognized audio
// extension.
func IsAudioFile(filename string) bool {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	_, ok := audioExtensions[ext]
	return ok
}

// normalizeFilename prepares a path for comparison. Gateway-reported
// paths differ from the originally requested ones in separator style,
// case and sometimes prefix.
func normalizeFilename(filename string) string {
	return strings.TrimSpace(strings.ToLower(strings.ReplaceAll(filename, "\\", "/")))
}

// FilenamesMatch reports whether two paths refer to the same file:
// exact match after normalization, suffix match in either direction, or
// equality of the bare filename component. Symmetric by construction.
func FilenamesMatch(a, b string) bool {
	na := normalizeFilename(a)
	nb := normalizeFilename(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.HasSuffix(na, nb) || strings.HasSuffix(nb, na) {
		return true
	}
	return path.Base(na) == path.Base(nb)
}
