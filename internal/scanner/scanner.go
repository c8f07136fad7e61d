package scanner

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
)

type Scanner struct {
	movieRepo *repository.MovieRepository
}

// Extension set for library video content.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
}

func NewScanner(movieRepo *repository.MovieRepository) *Scanner {
	return &Scanner{movieRepo: movieRepo}
}

// ScanResult summarizes one library walk.
type ScanResult struct {
	Found       int
	Added       int
	Updated     int
	Removed     int
	NewMovieIDs []uuid.UUID
}

// ScanLibrary walks the library root, reconciling the catalog with what is
// on disk: new files become unidentified (or identified, when the filename
// or an NFO sidecar already carries an external ID) movies, files that
// disappeared are soft-deleted.
func (s *Scanner) ScanLibrary(ctx context.Context, library *models.Library) (*ScanResult, error) {
	result := &ScanResult{}
	presentPaths := []string{}

	log.Printf("Scanner: scanning library %q at %s", library.Name, library.Path)

	err := filepath.Walk(library.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Scanner: skipping %s: %v", path, err)
			return nil
		}
		if info.IsDir() {
			// Hidden directories are never library content.
			if strings.HasPrefix(info.Name(), ".") && path != library.Path {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !videoExtensions[ext] {
			return nil
		}
		if extra := IsExtraFile(path, info.Size()); extra != "" {
			return nil
		}

		result.Found++
		presentPaths = append(presentPaths, path)

		if err := s.reconcileFile(library, path, info.Size(), result); err != nil {
			log.Printf("Scanner: %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Soft-delete movies whose files vanished. An empty walk result more
	// likely means an unmounted share than a deliberately emptied library,
	// so leave the catalog alone in that case.
	if len(presentPaths) > 0 {
		removed, err := s.movieRepo.SoftDeleteMissing(library.ID, presentPaths)
		if err != nil {
			return nil, err
		}
		result.Removed = removed
	}

	log.Printf("Scanner: library %q done: %d found, %d added, %d updated, %d removed",
		library.Name, result.Found, result.Added, result.Updated, result.Removed)
	return result, nil
}

func (s *Scanner) reconcileFile(library *models.Library, path string, size int64, result *ScanResult) error {
	existing, err := s.movieRepo.GetByPath(library.ID, path)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.DeletedAt != nil {
			// The file came back inside the recycle window.
			if err := s.movieRepo.Restore(existing.ID); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	}

	movie := s.movieFromFile(library, path, size)
	if err := s.movieRepo.Create(movie); err != nil {
		return err
	}
	result.Added++
	result.NewMovieIDs = append(result.NewMovieIDs, movie.ID)
	return nil
}

// movieFromFile builds the initial catalog row. The folder name wins over
// the filename for the title when it follows the "Title (Year)" convention,
// since scene-named files often sit in clean folders.
func (s *Scanner) movieFromFile(library *models.Library, path string, size int64) *models.Movie {
	fileName := filepath.Base(path)
	parsed := ParseFilename(fileName)

	title := parsed.Title
	year := parsed.Year
	folderName := filepath.Base(filepath.Dir(path))
	if folderName != filepath.Base(library.Path) {
		if ft, fy := ParseFolderName(folderName); ft != "" && fy != nil {
			title, year = ft, fy
		}
	}

	movie := &models.Movie{
		ID:        uuid.New(),
		LibraryID: library.ID,
		FilePath:  path,
		FileName:  fileName,
		FileSize:  size,
		Title:     title,
		Year:      year,
		Status:    models.StatusUnidentified,
		Monitored: true,
	}

	if parsed.TMDBID != "" {
		movie.TMDBID = &parsed.TMDBID
	}
	if parsed.TVDBID != "" {
		movie.TVDBID = &parsed.TVDBID
	}
	imdbID := parsed.IMDBID
	if imdbID == "" {
		imdbID = ReadNFOIMDBID(path)
	}
	if imdbID != "" {
		movie.IMDBID = &imdbID
	}

	// Any external ID skips the identify step.
	if movie.TMDBID != nil || movie.IMDBID != nil || movie.TVDBID != nil {
		movie.Status = models.StatusIdentified
	}

	return movie
}
