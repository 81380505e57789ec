package core

import (
	"context"

	"github.com/vadimtrunov/cinelist/internal/catalog"
)

// MovieService is the remote catalog used by list controllers.
// Each call returns one page or an error; page numbers are 1-based.
type MovieService interface {
	// GetPopular returns a page of the popular list
	GetPopular(ctx context.Context, page int) (*catalog.MoviePage, error)

	// GetNowPlaying returns a page of movies currently in theatres
	GetNowPlaying(ctx context.Context, page int) (*catalog.MoviePage, error)

	// GetUpcoming returns a page of upcoming releases
	GetUpcoming(ctx context.Context, page int) (*catalog.MoviePage, error)

	// GetTopRated returns a page of the top-rated list
	GetTopRated(ctx context.Context, page int) (*catalog.MoviePage, error)

	// Search returns a page of movies matching keyword
	Search(ctx context.Context, keyword string, page int) (*catalog.MoviePage, error)
}

// MovieDetailsProvider fetches the full record for a single movie.
type MovieDetailsProvider interface {
	GetMovie(ctx context.Context, id int) (*catalog.MovieDetails, error)
}

// Router navigates away from a list, e.g. to a details screen.
type Router interface {
	ShowMovieDetails(id int)
}

// RouterFunc adapts a plain function to Router.
type RouterFunc func(id int)

// ShowMovieDetails calls f(id).
func (f RouterFunc) ShowMovieDetails(id int) { f(id) }
