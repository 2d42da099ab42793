package musicbrainz

// releaseSearchResponse is the wire shape of a release search.
type releaseSearchResponse struct {
	Count    int       `json:"count"`
	Releases []Release `json:"releases"`
}

// Release is one release entry from a search.
type Release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Score        int          `json:"score"`
	Date         string       `json:"date"`
	Country      string       `json:"country"`
	TrackCount   int          `json:"track-count"`
	ArtistCredit []ArtistName `json:"artist-credit"`
}

// ArtistName is a credited artist on a release.
type ArtistName struct {
	Name string `json:"name"`
}

// Artist returns the first credited artist, or an empty string.
func (r Release) Artist() string {
	if len(r.ArtistCredit) == 0 {
		return ""
	}
	return r.ArtistCredit[0].Name
}

// releaseLookupResponse is the wire shape of a release lookup with
// recordings included.
type releaseLookupResponse struct {
	Media []struct {
		Tracks []struct {
			Position int    `json:"position"`
			Title    string `json:"title"`
		} `json:"tracks"`
	} `json:"media"`
}
