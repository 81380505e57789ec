package catalog

import (
	"fmt"
	"strings"
)

// Category selects one of the TMDb movie list endpoints.
type Category string

// Supported list categories.
const (
	Popular    Category = "popular"
	NowPlaying Category = "now_playing"
	Upcoming   Category = "upcoming"
	TopRated   Category = "top_rated"
)

// Categories returns all list categories in display order.
func Categories() []Category {
	return []Category{Popular, NowPlaying, Upcoming, TopRated}
}

// ParseCategory accepts the canonical names plus dashed and compact aliases
// ("now-playing", "nowplaying", "top-rated", "toprated").
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "popular":
		return Popular, nil
	case "now_playing", "now-playing", "nowplaying":
		return NowPlaying, nil
	case "upcoming":
		return Upcoming, nil
	case "top_rated", "top-rated", "toprated":
		return TopRated, nil
	}
	return "", fmt.Errorf("unknown category %q (want popular, now_playing, upcoming or top_rated)", s)
}

// Title returns a human-readable label.
func (c Category) Title() string {
	switch c {
	case Popular:
		return "Popular"
	case NowPlaying:
		return "Now Playing"
	case Upcoming:
		return "Upcoming"
	case TopRated:
		return "Top Rated"
	}
	return string(c)
}

// MovieSummary is one catalog entry in a list page.
type MovieSummary struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	ReleaseDate string   `json:"release_date"`
	PosterPath  *string  `json:"poster_path,omitempty"`
	VoteAverage *float64 `json:"vote_average,omitempty"`
}

// MoviePage is a decoded paginated list response.
type MoviePage struct {
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Movies       []MovieSummary `json:"results"`
}

// UnmarshalJSON decodes p with the same strict rules as DecodePage.
func (p *MoviePage) UnmarshalJSON(data []byte) error {
	decoded, err := DecodePage(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// MovieDetails is the full record returned by /movie/{id}.
type MovieDetails struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Runtime     int     `json:"runtime"`
	Status      string  `json:"status"`
	Tagline     string  `json:"tagline"`
	IMDbID      string  `json:"imdb_id"`
	Genres      []Genre `json:"genres"`
}

// Genre represents a movie genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreNames returns the genre names joined with ", ".
func (d *MovieDetails) GenreNames() string {
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}
