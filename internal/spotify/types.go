package spotify

// Wire shapes for the subset of the Web API we consume

// Image is an album/artist artwork reference
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is a track or album artist reference
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is the album block of a track object
type Album struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ReleaseDate  string            `json:"release_date"`
	AlbumType    string            `json:"album_type"`
	TotalTracks  int               `json:"total_tracks"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// Track is a full track object
type Track struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []Artist          `json:"artists"`
	Album        Album             `json:"album"`
	DurationMS   int               `json:"duration_ms"`
	DiscNumber   int               `json:"disc_number"`
	TrackNumber  int               `json:"track_number"`
	Explicit     bool              `json:"explicit"`
	Popularity   int               `json:"popularity"`
	ExternalIDs  map[string]string `json:"external_ids"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// URL returns the public track URL
func (t *Track) URL() string {
	return t.ExternalURLs["spotify"]
}

// ISRC returns the track's ISRC identifier when present
func (t *Track) ISRC() string {
	return t.ExternalIDs["isrc"]
}

// ArtistNames returns the artist display names in order
func (t *Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// SearchResult is the track page of a search response
type SearchResult struct {
	Tracks struct {
		Items []Track `json:"items"`
		Total int     `json:"total"`
	} `json:"tracks"`
}

// ArtistSearchResult is the artist page of a search response
type ArtistSearchResult struct {
	Artists struct {
		Items []Artist `json:"items"`
		Total int      `json:"total"`
	} `json:"artists"`
}

// AlbumPage is one page of an artist's album listing
type AlbumPage struct {
	Items []Album `json:"items"`
	Total int     `json:"total"`
}

// FullAlbum is a full album object including its track listing
type FullAlbum struct {
	Album
	Artists []Artist `json:"artists"`
	Tracks  struct {
		Items []Track `json:"items"`
	} `json:"tracks"`
}

// ArtistName returns the primary album artist, or ""
func (a *FullAlbum) ArtistName() string {
	if len(a.Artists) == 0 {
		return ""
	}
	return a.Artists[0].Name
}

// Recommendations is the response of the recommendations endpoint
type Recommendations struct {
	Tracks []Track `json:"tracks"`
}

// User is the current-user profile (user-scope call)
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Product     string `json:"product"`
}
