package matching

import (
	"testing"
)

func TestRankScoresWithinBounds(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		artist   string
		album    string
		tracks   []string
	}{
		{
			name:     "full metadata",
			filename: `Music\Radiohead\OK Computer (1997)\03 - Subterranean Homesick Alien.flac`,
			artist:   "Radiohead",
			album:    "OK Computer",
			tracks:   []string{"Subterranean Homesick Alien", "Airbag"},
		},
		{
			name:     "artist only",
			filename: `shared/stuff/random_file.mp3`,
			artist:   "Radiohead",
		},
		{
			name:     "no metadata at all",
			filename: `track.mp3`,
		},
		{
			name:     "unrelated candidate",
			filename: `C:\warez\movies\Die Hard 1988.mkv`,
			artist:   "Boards of Canada",
			album:    "Geogaddi",
			tracks:   []string{"Julie and Candy"},
		},
		{
			name:     "generic folder name with confident track",
			filename: `downloads/new stuff/Aphex Twin - Windowlicker.flac`,
			artist:   "Aphex Twin",
			album:    "Windowlicker",
			tracks:   []string{"Windowlicker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Rank(tt.filename, tt.artist, tt.album, tt.tracks)

			components := map[string]float64{
				"artist":   res.ArtistScore,
				"album":    res.AlbumScore,
				"track":    res.TrackScore,
				"combined": res.Score,
			}
			for name, score := range components {
				if score < 0.0 || score > 1.0 {
					t.Errorf("%s score %f out of [0,1]", name, score)
				}
			}
		})
	}
}

func TestRankAlbumScenario(t *testing.T) {
	filename := `Music\Boards Of Canada - Music Has The Right To Children (1998)\02 - Telephasic Workshop.flac`

	res := Rank(filename, "Boards of Canada", "Music Has the Right to Children",
		[]string{"Roygbiv", "Telephasic Workshop"})

	if res.Score <= 0.6 {
		t.Errorf("Expected combined score above 0.6, got %f", res.Score)
	}
	if res.MatchedTrack != "Telephasic Workshop" {
		t.Errorf("Expected matched track %q, got %q", "Telephasic Workshop", res.MatchedTrack)
	}
	if res.ArtistScore != 1.0 {
		t.Errorf("Expected artist score 1.0, got %f", res.ArtistScore)
	}
	if res.GuessedArtist == "" {
		t.Error("Expected a guessed artist, got empty string")
	}
}

func TestRankPrefersStemArtistWhenHigher(t *testing.T) {
	// Folder names are generic, the stem carries the artist.
	res := Rank(`incoming/rips/Autechre - Gantz Graf.flac`, "Autechre", "", nil)

	if res.GuessedArtist != "Autechre" {
		t.Errorf("Expected guessed artist %q, got %q", "Autechre", res.GuessedArtist)
	}
	if res.ArtistScore != 1.0 {
		t.Errorf("Expected artist score 1.0, got %f", res.ArtistScore)
	}
}

func TestRankArtistOnlyExcludesTrackWeight(t *testing.T) {
	// A search without expected tracks must not gain the track
	// component's weight: the combined score is the artist score alone,
	// and a half-matching folder stays below the grouping floor.
	res := Rank(`Radiohead Stuff\random folder\some file.mp3`, "Radiohead Yorke", "", nil)

	if res.ArtistScore != 0.5 {
		t.Fatalf("Expected artist score 0.5, got %f", res.ArtistScore)
	}
	if res.Score != res.ArtistScore {
		t.Errorf("Expected combined score %f to equal the artist score, got %f", res.ArtistScore, res.Score)
	}
	if res.Score >= 0.6 {
		t.Errorf("Expected a half match to stay below the 0.6 floor, got %f", res.Score)
	}
}

func TestRankArtistFromBareStem(t *testing.T) {
	// No separator in the stem: the whole stem is the artist candidate.
	res := Rank(`shared/misc/Burial.flac`, "Burial", "", nil)

	if res.ArtistScore != 1.0 {
		t.Errorf("Expected artist score 1.0 from the bare stem, got %f", res.ArtistScore)
	}
	if res.GuessedArtist != "Burial" {
		t.Errorf("Expected guessed artist %q, got %q", "Burial", res.GuessedArtist)
	}
}

func TestRankNoExpectedTracks(t *testing.T) {
	res := Rank(`Music\Orbital\Orbital 2\05 - Halcyon + On + On.mp3`, "Orbital", "", nil)

	if res.TrackScore != 1.0 {
		t.Errorf("Expected track score 1.0 with no expected tracks, got %f", res.TrackScore)
	}
	if res.MatchedTrack != "Halcyon + On + On" {
		t.Errorf("Expected track guess from stem, got %q", res.MatchedTrack)
	}
}

func TestRankUninformativeAlbumDoesNotDragScore(t *testing.T) {
	// The folder has nothing in common with the album title; the album
	// weight should drop out of the denominator rather than sink an
	// otherwise confident match.
	withAlbum := Rank(`downloads/Burial - Archangel.flac`, "Burial", "Untrue", []string{"Archangel"})
	withoutAlbum := Rank(`downloads/Burial - Archangel.flac`, "Burial", "", []string{"Archangel"})

	if withAlbum.AlbumScore > albumInfoThreshold {
		t.Fatalf("Test premise broken: album score %f should be uninformative", withAlbum.AlbumScore)
	}
	if withAlbum.Score < withoutAlbum.Score-0.1 {
		t.Errorf("Uninformative album dragged score from %f to %f", withoutAlbum.Score, withAlbum.Score)
	}
	if withAlbum.Score <= 0.6 {
		t.Errorf("Expected confident artist+track match above floor, got %f", withAlbum.Score)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"01 - Roygbiv", "Roygbiv"},
		{"12. Aquarius", "Aquarius"},
		{"B2 - Olson", "Olson"},
		{"Geogaddi [FLAC]", "Geogaddi"},
		{"Geogaddi (2002)", "Geogaddi"},
		{"Music Has The Right To Children 1998", "Music Has The Right To Children"},
		{"Boards_Of_Canada", "Boards Of Canada"},
		{"Telephasic Workshop", "Telephasic Workshop"},
	}

	for _, tt := range tests {
		if got := cleanTitle(tt.input); got != tt.expected {
			t.Errorf("cleanTitle(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSimilarityPrimitives(t *testing.T) {
	a := wordSet("boards of canada")
	b := wordSet("boards of canada")
	c := wordSet("the campfire headphase by boards of canada")
	empty := wordSet("")

	if got := jaccard(a, b); got != 1.0 {
		t.Errorf("jaccard of identical sets = %f, expected 1.0", got)
	}
	if got := containment(c, a); got != 1.0 {
		t.Errorf("containment of superset = %f, expected 1.0", got)
	}
	if got := containment(a, c); got >= 1.0 {
		t.Errorf("containment of subset = %f, expected below 1.0", got)
	}
	if got := dice(a, empty); got != 0.0 {
		t.Errorf("dice against empty set = %f, expected 0.0", got)
	}
	if got := jaccard(empty, empty); got != 0.0 {
		t.Errorf("jaccard of empty sets = %f, expected 0.0", got)
	}
}
