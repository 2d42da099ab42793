// Package matching scores peer filenames against the artist, album and
// track metadata the user searched for. Peer paths carry no canonical
// identifiers, so everything here is heuristic word-set comparison over
// cleaned path components.
package matching

import (
	"path"
	"regexp"
	"strings"
)

// Component weights for the combined score.
const (
	artistWeight = 0.2
	trackWeight  = 0.4
	albumWeight  = 0.4

	// Below this the album folder name is considered uninformative and its
	// weight is dropped from the denominator so a generic folder cannot
	// drag down a confident artist+track match.
	albumInfoThreshold = 0.25
)

var (
	// "01 - ", "3.", "B2 -" style track number prefixes.
	leadingTrackNumRe = regexp.MustCompile(`^\s*(\d{1,3}|[A-Da-d]\d{1,2})\s*[.\-]\s*`)
	// Trailing "[FLAC]", "[2004 Remaster]" style tags.
	trailingBracketRe = regexp.MustCompile(`\s*\[[^\]]*\]\s*$`)
	// Trailing release year, optionally wrapped: "1998", "(1998)", "[1998]", "-1998".
	trailingYearRe = regexp.MustCompile(`\s*[-(\[]?\d{4}[-)\]]?\s*$`)

	nonWordRe = regexp.MustCompile(`\W+`)
)

// Result is the outcome of ranking one candidate filename.
type Result struct {
	GuessedArtist string  `json:"guessedArtist"`
	GuessedAlbum  string  `json:"guessedAlbum"`
	MatchedTrack  string  `json:"matchedTrack"`
	ArtistScore   float64 `json:"artistScore"`
	AlbumScore    float64 `json:"albumScore"`
	TrackScore    float64 `json:"trackScore"`
	Score         float64 `json:"score"`
}

// Rank scores a peer-reported filename against the requested metadata.
// Artist and album may be empty; expectedTracks may be nil. Components
// that were not asked for are excluded from the combined weighting.
func Rank(filename, artist, album string, expectedTracks []string) Result {
	folders, stem := splitPath(filename)

	res := Result{}
	weightSum := 0.0
	weighted := 0.0

	if artist != "" {
		res.ArtistScore, res.GuessedArtist = scoreArtist(folders, stem, artist)
		weighted += artistWeight * res.ArtistScore
		weightSum += artistWeight
	}

	if album != "" {
		res.AlbumScore, res.GuessedAlbum = scoreAlbum(folders, album)
		weighted += albumWeight * res.AlbumScore
		if res.AlbumScore > albumInfoThreshold {
			weightSum += albumWeight
		}
	}

	res.TrackScore, res.MatchedTrack = scoreTrack(stem, expectedTracks)
	if len(expectedTracks) > 0 {
		weighted += trackWeight * res.TrackScore
		weightSum += trackWeight
	}

	if weightSum > 0 {
		res.Score = weighted / weightSum
	}
	if res.Score > 1.0 {
		res.Score = 1.0
	}
	if res.Score < 0 {
		res.Score = 0
	}

	return res
}

// splitPath returns the ancestor folder names nearest-first and the file
// stem with its extension removed. Peer paths use backslash separators.
func splitPath(filename string) (folders []string, stem string) {
	norm := strings.ReplaceAll(filename, "\\", "/")
	parts := strings.Split(norm, "/")

	base := parts[len(parts)-1]
	stem = strings.TrimSuffix(base, path.Ext(base))

	for i := len(parts) - 2; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			folders = append(folders, p)
		}
	}
	return folders, stem
}

// cleanTitle strips the decorations peers commonly add around titles:
// track number prefixes, trailing bracketed tags and trailing years.
func cleanTitle(text string) string {
	t := strings.ReplaceAll(text, "_", " ")
	t = leadingTrackNumRe.ReplaceAllString(t, "")
	t = trailingBracketRe.ReplaceAllString(t, "")
	t = trailingYearRe.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// wordSet tokenizes cleaned text into a lowercase word set.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range nonWordRe.Split(strings.ToLower(text), -1) {
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// jaccard is intersection over union.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := intersectionSize(a, b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// containment is intersection over the target size. Asymmetric: a
// candidate that contains every target word scores 1.0 regardless of how
// many extra words it carries.
func containment(candidate, target map[string]struct{}) float64 {
	if len(target) == 0 {
		return 0
	}
	return float64(intersectionSize(candidate, target)) / float64(len(target))
}

// dice is 2*intersection over total size.
func dice(a, b map[string]struct{}) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return 2 * float64(intersectionSize(a, b)) / float64(len(a)+len(b))
}

// scoreArtist compares ancestor folders and the stem's pre-separator
// segment (the whole stem when no separator is present) against the
// target artist. The stem-derived guess wins when
// its score is strictly higher, or on a near-perfect tie when the stem
// text is longer and therefore more specific.
func scoreArtist(folders []string, stem, artist string) (float64, string) {
	target := wordSet(cleanTitle(artist))

	bestFolderScore := 0.0
	bestFolderText := ""
	for _, folder := range folders {
		cleaned := cleanTitle(folder)
		if score := containment(wordSet(cleaned), target); score > bestFolderScore {
			bestFolderScore = score
			bestFolderText = cleaned
		}
	}

	stemArtist := cleanTitle(stem)
	if idx := strings.LastIndex(stem, " - "); idx >= 0 {
		stemArtist = cleanTitle(stem[:idx])
	}
	stemScore := containment(wordSet(stemArtist), target)

	if stemScore > bestFolderScore {
		return stemScore, stemArtist
	}
	if stemScore == bestFolderScore && stemScore > 0.9 && len(stemArtist) > len(bestFolderText) {
		return stemScore, stemArtist
	}
	return bestFolderScore, bestFolderText
}

// scoreAlbum takes the best Jaccard+containment average across ancestor
// folders against the target album.
func scoreAlbum(folders []string, album string) (float64, string) {
	target := wordSet(cleanTitle(album))

	best := 0.0
	guess := ""
	for _, folder := range folders {
		cleaned := cleanTitle(folder)
		words := wordSet(cleaned)
		score := (jaccard(words, target) + containment(words, target)) / 2
		if score > best {
			best = score
			guess = cleaned
		}
	}
	return best, guess
}

// scoreTrack compares the stem's post-separator text against every
// expected track. With no expected tracks the candidate is accepted as-is
// and the guess is the stem's trailing segment.
func scoreTrack(stem string, expectedTracks []string) (float64, string) {
	trackText := stem
	if idx := strings.LastIndex(stem, " - "); idx >= 0 {
		trackText = stem[idx+3:]
	}
	trackText = cleanTitle(trackText)

	if len(expectedTracks) == 0 {
		return 1.0, trackText
	}

	words := wordSet(trackText)
	best := 0.0
	matched := ""
	for _, expected := range expectedTracks {
		target := wordSet(cleanTitle(expected))
		score := 0.6*dice(words, target) + 0.4*containment(words, target)
		if score > best {
			best = score
			matched = expected
		}
	}
	return best, matched
}
