package publish

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

// ──────────────────── Kodi-Compatible NFO Structures ────────────────────

// xmlMovie is the <movie> root element of a Kodi/Jellyfin/Emby movie NFO.
type xmlMovie struct {
	XMLName       xml.Name      `xml:"movie"`
	Title         string        `xml:"title"`
	OriginalTitle string        `xml:"originaltitle,omitempty"`
	SortTitle     string        `xml:"sorttitle,omitempty"`
	Tagline       string        `xml:"tagline,omitempty"`
	Plot          string        `xml:"plot,omitempty"`
	Year          string        `xml:"year,omitempty"`
	Premiered     string        `xml:"premiered,omitempty"`
	Runtime       string        `xml:"runtime,omitempty"`
	MPAA          string        `xml:"mpaa,omitempty"`
	Trailer       string        `xml:"trailer,omitempty"`
	Genres        []string      `xml:"genre"`
	Studios       []string      `xml:"studio"`
	Actors        []xmlActor    `xml:"actor"`
	UniqueIDs     []xmlUniqueID `xml:"uniqueid"`
	Ratings       *xmlRatings   `xml:"ratings,omitempty"`
	LockData      string        `xml:"lockdata,omitempty"`
}

type xmlActor struct {
	Name  string `xml:"name"`
	Role  string `xml:"role,omitempty"`
	Thumb string `xml:"thumb,omitempty"`
	Order string `xml:"order"`
}

type xmlUniqueID struct {
	Type    string `xml:"type,attr"`
	Default string `xml:"default,attr,omitempty"`
	Value   string `xml:",chardata"`
}

type xmlRatings struct {
	Ratings []xmlRating `xml:"rating"`
}

type xmlRating struct {
	Name  string  `xml:"name,attr"`
	Max   string  `xml:"max,attr"`
	Value float64 `xml:"value"`
	Votes int     `xml:"votes,omitempty"`
}

// ──────────────────── NFO Renderer ────────────────────

// RenderMovieNFO serializes a movie's metadata into Kodi NFO XML. The
// output is deterministic for identical inputs, which is what makes the
// publisher's hash-stamp idempotence work.
func RenderMovieNFO(movie *models.Movie, actors []*models.Actor) ([]byte, error) {
	m := xmlMovie{Title: movie.Title}
	if movie.OriginalTitle != nil {
		m.OriginalTitle = *movie.OriginalTitle
	}
	if movie.SortTitle != nil {
		m.SortTitle = *movie.SortTitle
	}
	if movie.Tagline != nil {
		m.Tagline = *movie.Tagline
	}
	if movie.Plot != nil {
		m.Plot = *movie.Plot
	}
	if movie.Year != nil {
		m.Year = strconv.Itoa(*movie.Year)
	}
	if movie.ReleaseDate != nil {
		m.Premiered = *movie.ReleaseDate
	}
	if movie.RuntimeMinutes != nil {
		m.Runtime = strconv.Itoa(*movie.RuntimeMinutes)
	}
	if movie.ContentRating != nil {
		m.MPAA = *movie.ContentRating
	}
	if movie.TrailerURL != nil {
		m.Trailer = *movie.TrailerURL
	}

	m.Genres = movie.Genres
	m.Studios = movie.Studios

	if movie.TMDBID != nil && *movie.TMDBID != "" {
		m.UniqueIDs = append(m.UniqueIDs, xmlUniqueID{Type: "tmdb", Value: *movie.TMDBID, Default: "true"})
	}
	if movie.IMDBID != nil && *movie.IMDBID != "" {
		m.UniqueIDs = append(m.UniqueIDs, xmlUniqueID{Type: "imdb", Value: *movie.IMDBID})
	}
	if movie.TVDBID != nil && *movie.TVDBID != "" {
		m.UniqueIDs = append(m.UniqueIDs, xmlUniqueID{Type: "tvdb", Value: *movie.TVDBID})
	}

	if movie.Rating != nil {
		rating := xmlRating{Name: "default", Max: "10", Value: *movie.Rating}
		if movie.Votes != nil {
			rating.Votes = *movie.Votes
		}
		m.Ratings = &xmlRatings{Ratings: []xmlRating{rating}}
	}

	for _, a := range actors {
		actor := xmlActor{Name: a.Name, Order: strconv.Itoa(a.SortOrder)}
		if a.Role != nil {
			actor.Role = *a.Role
		}
		if a.ThumbURL != nil {
			actor.Thumb = *a.ThumbURL
		}
		m.Actors = append(m.Actors, actor)
	}

	if len(movie.LockedFields) > 0 {
		m.LockData = "true"
	}

	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal NFO: %w", err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}
