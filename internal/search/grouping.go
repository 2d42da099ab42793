package search

import (
	"sort"
	"strings"

	"github.com/soulbridge/soulbridge/internal/matching"
	"github.com/soulbridge/soulbridge/internal/slskd"
)

// Group ranking weights.
const (
	groupMatchWeight        = 0.3
	groupCompletenessWeight = 0.3
	groupQualityWeight      = 0.4
)

type groupKey struct {
	username string
	artist   string
	album    string
}

// BuildGroups filters, scores and groups candidates. Deterministic for a
// fixed candidate set: re-running on unchanged input yields identical
// groups and scores.
func BuildGroups(candidates []slskd.CandidateFile, artist, album string, expectedTracks []string) []AlbumGroup {
	type scored struct {
		file    slskd.CandidateFile
		match   matching.Result
		quality float64
	}

	byGroup := make(map[groupKey][]scored)
	var keyOrder []groupKey

	for _, file := range candidates {
		if !matching.IsAudioFile(file.Filename) {
			continue
		}
		match := matching.Rank(file.Filename, artist, album, expectedTracks)
		if match.Score < minMatchScore {
			continue
		}

		key := groupKey{
			username: file.Username,
			artist:   match.GuessedArtist,
			album:    match.GuessedAlbum,
		}
		if _, seen := byGroup[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		byGroup[key] = append(byGroup[key], scored{
			file:    file,
			match:   match,
			quality: file.QualityScore(),
		})
	}

	groups := make([]AlbumGroup, 0, len(byGroup))
	for _, key := range keyOrder {
		members := byGroup[key]

		// Per matched track, keep the single best candidate; ties break
		// on file quality.
		best := make(map[string]scored)
		var trackOrder []string
		for _, cand := range members {
			track := cand.match.MatchedTrack
			if track == "" {
				continue
			}
			current, exists := best[track]
			if !exists {
				trackOrder = append(trackOrder, track)
				best[track] = cand
				continue
			}
			if cand.match.Score > current.match.Score ||
				(cand.match.Score == current.match.Score && cand.quality > current.quality) {
				best[track] = cand
			}
		}
		if len(best) == 0 {
			continue
		}

		group := AlbumGroup{
			Username: key.username,
			Artist:   key.artist,
			Album:    key.album,
		}

		matchSum := 0.0
		qualitySum := 0.0
		extCounts := make(map[string]int)
		for _, track := range trackOrder {
			cand := best[track]
			group.Tracks = append(group.Tracks, TrackMatch{
				Track:        track,
				File:         cand.file,
				MatchScore:   cand.match.Score,
				QualityScore: cand.quality,
			})
			group.TotalSize += cand.file.Size
			matchSum += cand.match.Score
			qualitySum += cand.quality
			extCounts[cand.file.Extension()]++
		}

		retained := float64(len(group.Tracks))
		group.Completeness = 1.0
		if len(expectedTracks) > 0 {
			group.Completeness = retained / float64(len(expectedTracks))
		}

		meanMatch := matchSum / retained
		meanQuality := qualitySum / retained
		group.Score = groupMatchWeight*meanMatch +
			groupCompletenessWeight*group.Completeness +
			groupQualityWeight*meanQuality
		group.Quality = dominantQuality(extCounts)

		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Score != groups[j].Score {
			return groups[i].Score > groups[j].Score
		}
		if groups[i].Username != groups[j].Username {
			return groups[i].Username < groups[j].Username
		}
		return groups[i].Album < groups[j].Album
	})
	return groups
}

// dominantQuality labels the group by its most common file extension.
func dominantQuality(extCounts map[string]int) string {
	label := ""
	max := 0
	for ext, count := range extCounts {
		if count > max || (count == max && ext < label) {
			label = ext
			max = count
		}
	}
	return strings.ToUpper(label)
}
