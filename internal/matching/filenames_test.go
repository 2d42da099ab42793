package matching

import "testing"

func TestFilenamesMatch(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected bool
	}{
		{
			name:     "identical paths",
			a:        `@@alice\Music\Album\01 - Track.flac`,
			b:        `@@alice\Music\Album\01 - Track.flac`,
			expected: true,
		},
		{
			name:     "separator and case differences",
			a:        `Music\Album\01 - Track.flac`,
			b:        `music/album/01 - track.flac`,
			expected: true,
		},
		{
			name:     "gateway path is a longer prefix of the request",
			a:        `@@alice/shared/Music/Album/01 - Track.flac`,
			b:        `Music/Album/01 - Track.flac`,
			expected: true,
		},
		{
			name:     "request is a longer prefix of the gateway path",
			a:        `Album/01 - Track.flac`,
			b:        `C:/Users/alice/Album/01 - Track.flac`,
			expected: true,
		},
		{
			name:     "bare filename equality",
			a:        `some/where/01 - Track.flac`,
			b:        `else/entirely/01 - Track.flac`,
			expected: true,
		},
		{
			name:     "different files",
			a:        `Album/01 - Track.flac`,
			b:        `Album/02 - Other.flac`,
			expected: false,
		},
		{
			name:     "empty against anything",
			a:        ``,
			b:        `Album/01 - Track.flac`,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilenamesMatch(tt.a, tt.b); got != tt.expected {
				t.Errorf("FilenamesMatch(%q, %q) = %v, expected %v", tt.a, tt.b, got, tt.expected)
			}
			// Matching is symmetric.
			if got := FilenamesMatch(tt.b, tt.a); got != tt.expected {
				t.Errorf("FilenamesMatch(%q, %q) = %v, expected %v (symmetry)", tt.b, tt.a, got, tt.expected)
			}
		})
	}
}

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		filename string
		expected bool
	}{
		{`Music\Album\01 - Track.flac`, true},
		{`Music\Album\01 - Track.FLAC`, true},
		{`track.mp3`, true},
		{`track.ogg`, true},
		{`cover.jpg`, false},
		{`album.nfo`, false},
		{`notes.txt`, false},
		{`noextension`, false},
	}

	for _, tt := range tests {
		if got := IsAudioFile(tt.filename); got != tt.expected {
			t.Errorf("IsAudioFile(%q) = %v, expected %v", tt.filename, got, tt.expected)
		}
	}
}
