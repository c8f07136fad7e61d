package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JustinTDCT/MediaForge/internal/cache"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
)

// assetSuffixes maps each publishable slot to its Kodi filename suffix.
// Types missing from the table stay cache-only.
var assetSuffixes = map[models.AssetType]string{
	models.AssetPoster:    "-poster",
	models.AssetFanart:    "-fanart",
	models.AssetBanner:    "-banner",
	models.AssetClearLogo: "-clearlogo",
	models.AssetClearArt:  "-clearart",
	models.AssetDiscArt:   "-disc",
	models.AssetLandscape: "-landscape",
	models.AssetKeyArt:    "-keyart",
	models.AssetTrailer:   "-trailer",
}

// basenameOK matches the characters allowed in a published basename.
var basenameOK = regexp.MustCompile(`^[A-Za-z0-9 _().-]+$`)

// Publisher syncs selected cache files into the movie's library directory.
// Everything is hash-diffed: unchanged files are never rewritten, and a
// publish run with nothing to do touches nothing.
type Publisher struct {
	movieRepo   *repository.MovieRepository
	assetRepo   *repository.AssetRepository
	cacheRepo   *repository.CacheFileRepository
	libFileRepo *repository.LibraryFileRepository
	store       *cache.Store
}

func NewPublisher(
	movieRepo *repository.MovieRepository,
	assetRepo *repository.AssetRepository,
	cacheRepo *repository.CacheFileRepository,
	libFileRepo *repository.LibraryFileRepository,
	store *cache.Store,
) *Publisher {
	return &Publisher{
		movieRepo:   movieRepo,
		assetRepo:   assetRepo,
		cacheRepo:   cacheRepo,
		libFileRepo: libFileRepo,
		store:       store,
	}
}

// Result reports what one publish run actually did.
type Result struct {
	MovieID    uuid.UUID
	Copied     int
	Renamed    int
	Skipped    int
	Deleted    int
	NFOWritten bool
	Changed    bool
	// Paths is every file currently published for the movie, NFO included.
	Paths  []string
	Errors []string
}

// inventory is the hash view of the movie's directory, main file excluded.
type inventory struct {
	hashToPath map[string]string
	pathToHash map[string]string
}

// Publish runs the three-way sync for one movie. Per-file failures are
// collected in Result.Errors rather than aborting; only a broken catalog
// row or an unwritable NFO fails the run.
func (p *Publisher) Publish(ctx context.Context, movieID uuid.UUID) (*Result, error) {
	movie, err := p.movieRepo.GetByID(movieID)
	if err != nil {
		return nil, err
	}
	if movie.DeletedAt != nil {
		return nil, fmt.Errorf("movie %s is deleted", movieID)
	}

	base, err := sanitizeBasename(strings.TrimSuffix(movie.FileName, filepath.Ext(movie.FileName)))
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(movie.FilePath)
	mainPaths := map[string]bool{movie.FilePath: true}

	result := &Result{MovieID: movieID}

	inv, err := buildInventory(dir, mainPaths)
	if err != nil {
		return nil, err
	}

	authorized := map[string]bool{}
	var published []*models.LibraryFile

	selected, err := p.assetRepo.ListSelected(movieID)
	if err != nil {
		return nil, err
	}
	for _, asset := range selected {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if asset.ContentHash == nil {
			continue
		}
		suffix, ok := assetSuffixes[asset.AssetType]
		if !ok {
			continue
		}
		record, err := p.placeAsset(dir, base, suffix, asset, inv, result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", asset.AssetType, err))
			continue
		}
		authorized[*asset.ContentHash] = true
		if record != nil {
			published = append(published, record)
			result.Paths = append(result.Paths, record.Path)
		}
	}

	nfoFile, nfoHash, err := p.writeNFO(movie, dir, base, inv, result)
	if err != nil {
		return result, err
	}
	authorized[nfoHash] = true
	published = append(published, nfoFile)
	result.Paths = append(result.Paths, nfoFile.Path)

	p.cleanup(movie, inv, authorized, mainPaths, result)

	if err := p.libFileRepo.Replace(movieID, published); err != nil {
		return result, err
	}
	if err := p.movieRepo.MarkPublished(movieID, nfoHash); err != nil {
		return result, err
	}

	log.Printf("Publisher: movie %s: %d copied, %d renamed, %d skipped, %d deleted, nfo=%v",
		movieID, result.Copied, result.Renamed, result.Skipped, result.Deleted, result.NFOWritten)
	return result, nil
}

// buildInventory hashes every sibling of the main media file. Temp files
// from interrupted runs are ignored.
func buildInventory(dir string, mainPaths map[string]bool) (*inventory, error) {
	inv := &inventory{
		hashToPath: map[string]string{},
		pathToHash: map[string]string{},
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read library dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if mainPaths[path] || strings.Contains(e.Name(), ".tmp.") {
			continue
		}
		hash, err := cache.HashFile(path)
		if err != nil {
			log.Printf("Publisher: hash %s: %v", path, err)
			continue
		}
		inv.hashToPath[hash] = path
		inv.pathToHash[path] = hash
	}
	return inv, nil
}

// placeAsset lands one selected asset at its conventional name: skip when
// already there, rename when the content exists under another name, copy
// from cache otherwise.
func (p *Publisher) placeAsset(dir, base, suffix string, asset *models.AssetCandidate, inv *inventory, result *Result) (*models.LibraryFile, error) {
	hash := *asset.ContentHash
	kind := models.KindImage
	if asset.AssetType == models.AssetTrailer {
		kind = models.KindVideo
	}

	src := p.store.Get(kind, hash)
	if src == "" {
		return nil, fmt.Errorf("cache file %s missing on disk", hash)
	}

	ext, err := detectExtension(src, kind)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(dir, base+suffix+ext)

	switch {
	case inv.pathToHash[target] == hash:
		result.Skipped++
	case inv.hashToPath[hash] != "":
		prev := inv.hashToPath[hash]
		if err := os.Rename(prev, target); err != nil {
			return nil, err
		}
		delete(inv.pathToHash, prev)
		inv.hashToPath[hash] = target
		inv.pathToHash[target] = hash
		result.Renamed++
		result.Changed = true
	default:
		if err := copyAtomic(src, target); err != nil {
			return nil, err
		}
		inv.hashToPath[hash] = target
		inv.pathToHash[target] = hash
		result.Copied++
		result.Changed = true
	}

	cacheFile, err := p.cacheRepo.GetByHash(hash)
	if err != nil {
		return nil, err
	}
	if cacheFile == nil {
		// Catalog row missing for a file the store clearly has; recreate it.
		assetType := asset.AssetType
		cacheFile = &models.CacheFile{
			ContentHash: hash,
			Path:        src,
			Kind:        kind,
			MovieID:     &asset.MovieID,
			AssetType:   &assetType,
		}
		if asset.ByteSize != nil {
			cacheFile.ByteSize = *asset.ByteSize
		}
		if err := p.cacheRepo.Upsert(cacheFile); err != nil {
			return nil, err
		}
	}

	return &models.LibraryFile{
		MovieID:     asset.MovieID,
		CacheFileID: cacheFile.ID,
		AssetType:   asset.AssetType,
		Path:        target,
		Kind:        kind,
	}, nil
}

// writeNFO renders the metadata, writes it only when the content hash
// differs from what is on disk, and mirrors the rendered bytes into the
// cache so the catalog fully describes the published directory.
func (p *Publisher) writeNFO(movie *models.Movie, dir, base string, inv *inventory, result *Result) (*models.LibraryFile, string, error) {
	actors, err := p.movieRepo.GetActors(movie.ID)
	if err != nil {
		return nil, "", err
	}
	data, err := RenderMovieNFO(movie, actors)
	if err != nil {
		return nil, "", err
	}
	hash := cache.HashBytes(data)
	target := filepath.Join(dir, base+".nfo")

	if inv.pathToHash[target] == hash {
		result.Skipped++
	} else {
		if err := writeAtomic(target, data); err != nil {
			return nil, "", err
		}
		inv.hashToPath[hash] = target
		inv.pathToHash[target] = hash
		result.NFOWritten = true
		result.Changed = true
	}

	_, storePath, err := p.store.Put(models.KindText, data)
	if err != nil {
		return nil, "", err
	}
	nfoType := models.AssetNFO
	cacheFile := &models.CacheFile{
		ContentHash: hash,
		Path:        storePath,
		ByteSize:    int64(len(data)),
		Kind:        models.KindText,
		MovieID:     &movie.ID,
		AssetType:   &nfoType,
	}
	if err := p.cacheRepo.Upsert(cacheFile); err != nil {
		return nil, "", err
	}

	return &models.LibraryFile{
		MovieID:     movie.ID,
		CacheFileID: cacheFile.ID,
		AssetType:   models.AssetNFO,
		Path:        target,
		Kind:        models.KindText,
	}, hash, nil
}

// cleanup removes inventory files whose content is not authorized. The main
// media file is re-checked right before every delete.
func (p *Publisher) cleanup(movie *models.Movie, inv *inventory, authorized, mainPaths map[string]bool, result *Result) {
	for path, hash := range inv.pathToHash {
		if authorized[hash] {
			continue
		}
		if mainPaths[path] {
			continue
		}
		if !movie.Monitored {
			cacheFile, err := p.cacheRepo.GetByHash(hash)
			if err == nil && cacheFile != nil && cacheFile.IsLocked {
				continue
			}
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", path, err))
			continue
		}
		delete(inv.hashToPath, hash)
		delete(inv.pathToHash, path)
		result.Deleted++
		result.Changed = true
	}
}

// sanitizeBasename refuses basenames that could escape the library dir or
// produce surprising filenames.
func sanitizeBasename(base string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("empty basename")
	}
	if strings.ContainsAny(base, `/\`) || strings.Contains(base, "..") {
		return "", fmt.Errorf("basename %q contains path traversal", base)
	}
	if !basenameOK.MatchString(base) {
		return "", fmt.Errorf("basename %q contains unsupported characters", base)
	}
	return base, nil
}

// detectExtension sniffs the published extension from file content.
func detectExtension(path string, kind models.MediaKind) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	head = head[:n]

	if kind == models.KindVideo {
		return videoExtension(head), nil
	}
	switch http.DetectContentType(head) {
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return ".jpg", nil
	}
}

// videoExtension recognizes the trailer containers providers actually serve:
// ISO base media ("ftyp" box) is .mp4; an EBML header is Matroska, published
// as .webm when the DocType says webm. Anything else falls back to .mp4.
func videoExtension(head []byte) string {
	if len(head) >= 8 && string(head[4:8]) == "ftyp" {
		return ".mp4"
	}
	if bytes.HasPrefix(head, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		if bytes.Contains(head, []byte("webm")) {
			return ".webm"
		}
		return ".mkv"
	}
	return ".mp4"
}

// copyAtomic copies src into place through a temp file in the target dir.
func copyAtomic(src, target string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// writeAtomic writes bytes through a temp file in the target dir.
func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
