package scanner

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ──────────────────── Parsed Result ────────────────────

// ParsedFilename holds everything extracted from a movie filename.
type ParsedFilename struct {
	Title      string
	Year       *int
	Resolution string // e.g. "1080p", "2160p"
	Container  string // e.g. "mkv", "mp4"
	Source     string // "bluray", "dvd", "web", "hdtv", etc.
	ExtraType  string // "trailer", "sample", etc. Empty = main content
	IMDBID     string // from NFO sidecar or inline filename tag
	TMDBID     string // from inline filename [tmdbid-12345]
	TVDBID     string // from inline filename [tvdbid-12345]
}

// ──────────────────── Compiled Regex (init once) ────────────────────

// Year extraction: requires delimiters to avoid false matches on episode numbers.
// Matches: (2020) [2020] .2020. -2020- _2020_ ,2020+
var yearRx = regexp.MustCompile(`(?:[\(\[\.\-_,\s])([12]\d{3})(?:[\)\]\.\-_,+\s]|$)`)
var yearInParensRx = regexp.MustCompile(`[\(\[]([12]\d{3})[\)\]]`)

// Strict pattern (tried first for well-named files):
// name (year) {edition} [resolution/container]
var strictMoviePattern = regexp.MustCompile(
	`(?i)^(.+?)\s*\((\d{4})\)\s*(?:\{([^}]+)\})?\s*(?:\[([^/\]]+)/([^\]]+)\])?\s*$`)

// ──────────────────── Token-Based Garbage Detection ────────────────────

// garbageTokens is the set of junk tokens to strip from scene-style names.
// Checked case-insensitively. Organized by category for maintainability.
var garbageTokens = buildGarbageSet(
	// Video codecs
	[]string{"x264", "x265", "h264", "h265", "h.264", "h.265", "hevc", "avc", "divx", "xvid", "mpeg4", "vp9", "av1", "10bit", "8bit", "hi10p", "hi10"},
	// Audio codecs & channels
	[]string{"aac", "ac3", "ac-3", "dts", "dts-hd", "dtshd", "dts-x", "truehd", "atmos", "flac", "mp3", "opus", "eac3", "dd5.1", "dd2.0", "5.1", "7.1", "2.0", "5.1ch", "7.1ch"},
	// Resolution
	[]string{"480p", "480i", "576p", "576i", "720p", "720i", "1080p", "1080i", "2160p", "4k", "uhd", "ultrahd", "hd", "sd"},
	// Source
	[]string{"bluray", "blu-ray", "bdrip", "brrip", "bdremux", "hdrip",
		"dvd", "dvdrip", "dvdscr", "dvdscreener", "r1", "r3", "r5",
		"webrip", "web-dl", "webdl", "web",
		"hdtv", "pdtv", "dsr", "dsrip", "stv", "tvrip",
		"cam", "screener", "scr", "tc", "telecine", "ts", "telesync",
		"ppv", "retail"},
	// Release type / misc
	[]string{"remux", "proper", "repack", "rerip", "internal", "limited", "custom",
		"extended", "unrated", "theatrical", "remastered",
		"read.nfo", "readnfo", "nfofix", "nfo",
		"multi", "multisubs", "dubbed", "subbed", "subs", "sub",
		"ws", "fs", "fragment"},
	// Container formats appearing as tokens
	[]string{"mkv", "mp4", "avi"},
)

// sourceTokenMap maps source labels to their identifying tokens.
var sourceTokenMap = map[string][]string{
	"bluray":   {"bluray", "blu-ray", "bdrip", "brrip", "hdrip", "bdremux", "remux"},
	"dvd":      {"dvd", "dvdrip", "r1", "r3", "r5"},
	"web":      {"webrip", "web-dl", "webdl", "web"},
	"hdtv":     {"hdtv", "pdtv", "dsr", "dsrip"},
	"cam":      {"cam"},
	"screener": {"dvdscr", "dvdscreener", "screener", "scr"},
	"telecine": {"tc", "telecine"},
	"telesync": {"ts", "telesync"},
}

// ──────────────────── Extras Detection ────────────────────

// Directories whose contents are extras, not main library content.
var extrasDirPatterns = []struct {
	rx        *regexp.Regexp
	extraType string
}{
	{regexp.MustCompile(`(?i)^trailers?$`), "trailer"},
	{regexp.MustCompile(`(?i)^samples?$`), "sample"},
	{regexp.MustCompile(`(?i)^extras?$`), "extra"},
	{regexp.MustCompile(`(?i)^bonus$`), "extra"},
	{regexp.MustCompile(`(?i)^behind[\s._-]?the[\s._-]?scenes?$`), "behind_the_scenes"},
	{regexp.MustCompile(`(?i)^featurettes?$`), "featurette"},
	{regexp.MustCompile(`(?i)^special[\s._-]?features?$`), "extra"},
}

// Filename suffixes that indicate extras.
var extrasSuffixPatterns = []struct {
	rx        *regexp.Regexp
	extraType string
}{
	{regexp.MustCompile(`(?i)[\s._-]trailer$`), "trailer"},
	{regexp.MustCompile(`(?i)[\s._-]sample$`), "sample"},
	{regexp.MustCompile(`(?i)[\s._-]behindthescenes$`), "behind_the_scenes"},
	{regexp.MustCompile(`(?i)[\s._-]featurette$`), "featurette"},
	{regexp.MustCompile(`(?i)[\s._-]extra$`), "extra"},
}

// Sample file detection: pattern + size threshold.
var sampleFileRx = regexp.MustCompile(`(?i)[\s._-]sample[\s._-]|^sample[\s._-]|[\s._-]sample$`)

// SampleFileSizeThreshold is the max size (300MB) for a sample to be ignored.
const SampleFileSizeThreshold = 300 * 1024 * 1024

// ──────────────────── Inline Provider ID Support ────────────────────
// Jellyfin-style: [tmdbid-12345], [imdbid-tt1234567], [tvdbid-12345]
// Plex-style:     {tmdb-12345},   {imdb-tt1234567},   {tvdb-12345}

var inlineTMDBIDPattern = regexp.MustCompile(`(?i)\[tmdbid[=-](\d+)\]`)
var inlineIMDBIDPattern = regexp.MustCompile(`(?i)\[imdbid[=-](tt\d+)\]`)
var inlineTVDBIDPattern = regexp.MustCompile(`(?i)\[tvdbid[=-](\d+)\]`)

var plexTMDBIDPattern = regexp.MustCompile(`(?i)\{tmdb[=-](\d+)\}`)
var plexIMDBIDPattern = regexp.MustCompile(`(?i)\{imdb[=-](tt\d+)\}`)
var plexTVDBIDPattern = regexp.MustCompile(`(?i)\{tvdb[=-](\d+)\}`)

func extractInlineProviderIDs(filename string, result *ParsedFilename) {
	if m := inlineTMDBIDPattern.FindStringSubmatch(filename); len(m) >= 2 {
		result.TMDBID = m[1]
	}
	if m := inlineIMDBIDPattern.FindStringSubmatch(filename); len(m) >= 2 {
		result.IMDBID = m[1]
	}
	if m := inlineTVDBIDPattern.FindStringSubmatch(filename); len(m) >= 2 {
		result.TVDBID = m[1]
	}
	if result.TMDBID == "" {
		if m := plexTMDBIDPattern.FindStringSubmatch(filename); len(m) >= 2 {
			result.TMDBID = m[1]
		}
	}
	if result.IMDBID == "" {
		if m := plexIMDBIDPattern.FindStringSubmatch(filename); len(m) >= 2 {
			result.IMDBID = m[1]
		}
	}
	if result.TVDBID == "" {
		if m := plexTVDBIDPattern.FindStringSubmatch(filename); len(m) >= 2 {
			result.TVDBID = m[1]
		}
	}
}

// ──────────────────── Main Parser ────────────────────

// ParseFilename extracts movie metadata from a filename. Tries the strict
// "Title (Year)" pattern first, then falls back to token-based cleaning
// for scene releases and other loosely-named files.
func ParseFilename(filename string) ParsedFilename {
	result := ParsedFilename{}

	ext := filepath.Ext(filename)
	baseName := strings.TrimSuffix(filename, ext)
	result.Container = strings.ToLower(strings.TrimPrefix(ext, "."))

	// Inline provider IDs come off before any bracket stripping.
	extractInlineProviderIDs(baseName, &result)
	baseName = inlineTMDBIDPattern.ReplaceAllString(baseName, "")
	baseName = inlineIMDBIDPattern.ReplaceAllString(baseName, "")
	baseName = inlineTVDBIDPattern.ReplaceAllString(baseName, "")
	baseName = plexTMDBIDPattern.ReplaceAllString(baseName, "")
	baseName = plexIMDBIDPattern.ReplaceAllString(baseName, "")
	baseName = plexTVDBIDPattern.ReplaceAllString(baseName, "")
	baseName = strings.TrimSpace(baseName)

	result.ExtraType = detectExtraFromFilename(baseName)

	// Strict: name (year) {edition} [resolution/container]
	if matches := strictMoviePattern.FindStringSubmatch(baseName); len(matches) >= 3 {
		result.Title = strings.TrimSpace(matches[1])
		year, err := strconv.Atoi(matches[2])
		if err == nil && year >= 1900 && year <= 2100 {
			result.Year = &year
		}
		if len(matches) >= 5 && matches[4] != "" {
			result.Resolution = strings.ToLower(strings.TrimSpace(matches[4]))
		}
		if len(matches) >= 6 && matches[5] != "" {
			result.Container = strings.ToLower(strings.TrimSpace(matches[5]))
		}
		log.Printf("Filename parse (strict): %q → title=%q year=%v",
			baseName, result.Title, result.Year)
		return result
	}

	// Fallback: universal token-based cleaning.
	cleaned := cleanFilenameUniversal(baseName)
	result.Title = cleaned.title
	result.Year = cleaned.year
	result.Resolution = cleaned.resolution
	result.Source = cleaned.source

	log.Printf("Filename parse (universal): %q → title=%q year=%v res=%q source=%q",
		baseName, result.Title, result.Year, result.Resolution, result.Source)
	return result
}

// ──────────────────── Universal Token-Based Cleaner ────────────────────

type cleanResult struct {
	title      string
	year       *int
	resolution string
	source     string
}

var braceContentRx = regexp.MustCompile(`\{[^}]*\}`)
var bracketContentRx = regexp.MustCompile(`\[[^\]]*\]`)

// cleanFilenameUniversal parses any filename format by:
// 1. Extracting year (used as breakpoint)
// 2. Tokenizing on delimiters
// 3. Building a good/bad bitmap using the garbage token set
// 4. Keeping good tokens, stopping after 2+ consecutive bad tokens
func cleanFilenameUniversal(baseName string) cleanResult {
	result := cleanResult{}
	name := baseName

	// Pass 1: strip bracketed content [xxx] and {xxx}
	name = braceContentRx.ReplaceAllString(name, " ")
	name = bracketContentRx.ReplaceAllString(name, " ")

	// Detect resolution and source across the whole name, before the year
	// breakpoint truncates the release-info tail.
	full := strings.ReplaceAll(name, ".", " ")
	full = strings.ReplaceAll(full, "_", " ")
	for _, t := range tokenize(full) {
		tl := strings.ToLower(t)
		if result.resolution == "" && isResolution(tl) {
			result.resolution = tl
		}
		if result.source == "" {
			result.source = detectSource(tl)
		}
	}

	// Pass 2: extract year; prefer parens/brackets, then delimited
	if m := yearInParensRx.FindStringSubmatch(name); len(m) >= 2 {
		y, _ := strconv.Atoi(m[1])
		if y >= 1900 && y <= 2100 {
			result.year = &y
			if idx := strings.Index(name, m[0]); idx > 0 {
				name = name[:idx]
			}
		}
	} else if m := yearRx.FindStringSubmatch(name); len(m) >= 2 {
		y, _ := strconv.Atoi(m[1])
		if y >= 1900 && y <= 2100 {
			result.year = &y
			if idx := strings.Index(name, m[1]); idx > 0 {
				name = name[:idx]
			}
		}
	}

	// Pass 3: normalize delimiters
	name = strings.ReplaceAll(name, ".", " ")
	name = strings.ReplaceAll(name, "_", " ")

	// Pass 4: tokenize and build garbage bitmap
	tokens := tokenize(name)
	if len(tokens) == 0 {
		result.title = baseName
		return result
	}

	bitmap := make([]bool, len(tokens))
	seen := make(map[string]bool)
	for i := len(tokens) - 1; i >= 0; i-- {
		tl := strings.ToLower(tokens[i])
		if garbageTokens[tl] && !seen[tl] {
			bitmap[i] = false
			seen[tl] = true
		} else {
			bitmap[i] = true
		}
	}

	// One or two tokens total: keep them all, they might be the title.
	if len(tokens) <= 2 {
		for i := range bitmap {
			bitmap[i] = true
		}
	}

	var finalTokens []string
	consecutiveBad := 0
	for i, good := range bitmap {
		if good {
			finalTokens = append(finalTokens, tokens[i])
			consecutiveBad = 0
		} else {
			consecutiveBad++
			if consecutiveBad >= 2 {
				break
			}
		}
	}

	if len(finalTokens) == 0 && len(tokens) > 0 {
		finalTokens = append(finalTokens, tokens[0])
	}

	result.title = strings.TrimSpace(strings.Join(finalTokens, " "))
	result.title = strings.TrimRight(result.title, " -–")
	result.title = collapseSpaces(result.title)

	return result
}

// ──────────────────── Extras Detection ────────────────────

// IsExtraFile classifies a file as an extra based on its full path.
// Returns the extra type string (e.g. "trailer", "sample") or empty string.
func IsExtraFile(fullPath string, fileSize int64) string {
	dir := filepath.Dir(fullPath)
	parts := strings.Split(dir, string(filepath.Separator))
	for _, part := range parts {
		for _, dp := range extrasDirPatterns {
			if dp.rx.MatchString(part) {
				return dp.extraType
			}
		}
	}

	base := strings.TrimSuffix(filepath.Base(fullPath), filepath.Ext(fullPath))

	// Sample files must also be under the size threshold.
	if sampleFileRx.MatchString(base) && fileSize < SampleFileSizeThreshold {
		return "sample"
	}

	return detectExtraFromFilename(base)
}

func detectExtraFromFilename(baseName string) string {
	for _, sp := range extrasSuffixPatterns {
		if sp.rx.MatchString(baseName) {
			return sp.extraType
		}
	}
	return ""
}

// ──────────────────── NFO Sidecar Support ────────────────────

var nfoIMDBPattern = regexp.MustCompile(`(tt\d{7,})`)

// ReadNFOIMDBID looks for a .nfo sidecar next to the media file and
// extracts an IMDB ID (tt1234567) if present.
func ReadNFOIMDBID(mediaFilePath string) string {
	dir := filepath.Dir(mediaFilePath)
	base := strings.TrimSuffix(filepath.Base(mediaFilePath), filepath.Ext(mediaFilePath))

	nfoPath := filepath.Join(dir, base+".nfo")
	if id := extractIMDBFromNFO(nfoPath); id != "" {
		return id
	}

	// Any .nfo in the directory counts when it holds the only video.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	videoCount := 0
	for _, e := range entries {
		if !e.IsDir() && videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			videoCount++
		}
	}
	if videoCount == 1 {
		for _, e := range entries {
			if !e.IsDir() && strings.ToLower(filepath.Ext(e.Name())) == ".nfo" {
				if id := extractIMDBFromNFO(filepath.Join(dir, e.Name())); id != "" {
					return id
				}
			}
		}
	}

	return ""
}

func extractIMDBFromNFO(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if m := nfoIMDBPattern.FindSubmatch(data); len(m) >= 2 {
		return string(m[1])
	}
	return ""
}

// ──────────────────── Folder-First Title Resolution ────────────────────

var folderYearRx = regexp.MustCompile(`[\(\[]([12]\d{3})[\)\]]`)

// ParseFolderName extracts a clean title and year from a parent folder name.
// Returns empty title if the folder doesn't follow a "Title (Year)" convention.
func ParseFolderName(folderName string) (title string, year *int) {
	if folderName == "" || folderName == "." || folderName == "/" {
		return "", nil
	}

	name := folderName
	name = bracketContentRx.ReplaceAllString(name, " ")
	name = braceContentRx.ReplaceAllString(name, " ")

	if m := folderYearRx.FindStringSubmatch(folderName); len(m) >= 2 {
		y, _ := strconv.Atoi(m[1])
		if y >= 1900 && y <= 2100 {
			year = &y
			if idx := strings.Index(folderName, m[0]); idx > 0 {
				name = folderName[:idx]
			}
		}
	}

	name = strings.TrimRight(name, " -–._")
	title = strings.TrimSpace(collapseSpaces(name))
	return title, year
}

// ──────────────────── Utility Functions ────────────────────

func buildGarbageSet(slices ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, sl := range slices {
		for _, s := range sl {
			set[strings.ToLower(s)] = true
		}
	}
	return set
}

// tokenize splits on whitespace, stripping surrounding punctuation but
// keeping dashes inside words like "Spider-Man".
func tokenize(s string) []string {
	parts := strings.Fields(s)
	var tokens []string
	for _, p := range parts {
		p = strings.Trim(p, "-–()[]{}+,;")
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func isResolution(token string) bool {
	resolutions := map[string]bool{
		"480p": true, "480i": true, "576p": true, "576i": true,
		"720p": true, "720i": true, "1080p": true, "1080i": true,
		"2160p": true, "4k": true, "uhd": true, "ultrahd": true,
	}
	return resolutions[strings.ToLower(token)]
}

func detectSource(token string) string {
	tl := strings.ToLower(token)
	for source, keywords := range sourceTokenMap {
		for _, kw := range keywords {
			if tl == kw {
				return source
			}
		}
	}
	return ""
}

var multiSpaceRx = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return multiSpaceRx.ReplaceAllString(s, " ")
}
