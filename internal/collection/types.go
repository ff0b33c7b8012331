package collection

import (
	"mime"
	"path/filepath"
	"strings"
)

// TypedFile is a file path together with its guessed mime type.
type TypedFile struct {
	Path string `json:"path"`
	Mime string `json:"mime"`
}

// NewTypedFile guesses the mime type from the path's extension.
func NewTypedFile(path string) TypedFile {
	return TypedFile{Path: path, Mime: MimeFor(path)}
}

// AudioFile is one playable file inside a folder.
type AudioFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Mime string `json:"mime"`
}

// FolderRef is a subfolder reference in listings and search results.
type FolderRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// AudioFolder is the listing of one folder: its playable files, its
// subfolders and, when present, a cover image and a description file.
type AudioFolder struct {
	Files      []AudioFile `json:"files"`
	Subfolders []FolderRef `json:"subfolders"`
	Cover      *TypedFile  `json:"cover"`
	Description *TypedFile `json:"description"`
}

// SearchResult is what a folder-name search returns.
type SearchResult struct {
	Subfolders []FolderRef `json:"subfolders"`
}

// Collections describes the configured collections.
type Collections struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

var audioExts = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".aac":  "audio/aac",
	".m4a":  "audio/m4a",
	".m4b":  "audio/m4b",
	".mka":  "audio/x-matroska",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".wav":  "audio/x-wav",
}

// transcodedExts are container/codec families the target playback
// environment cannot handle natively.
var transcodedExts = map[string]bool{
	".aac": true,
	".m4a": true,
	".m4b": true,
	".mka": true,
	".wav": true,
}

var coverExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var descriptionExts = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".md":   "text/x-markdown",
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// MimeFor guesses a mime type from the file extension, preferring the
// audio-specific table over the platform mime registry.
func MimeFor(path string) string {
	e := ext(path)
	if m, ok := audioExts[e]; ok {
		return m
	}
	if m, ok := descriptionExts[e]; ok {
		return m
	}
	if m := mime.TypeByExtension(e); m != "" {
		// Strip parameters like charset, they only add noise here.
		if i := strings.IndexByte(m, ';'); i >= 0 {
			m = strings.TrimSpace(m[:i])
		}
		return m
	}
	return "application/octet-stream"
}

// IsAudio reports whether the path looks like a playable audio file.
func IsAudio(path string) bool {
	_, ok := audioExts[ext(path)]
	return ok
}

// MustTranscode reports whether the file's container requires transcoding
// for playback regardless of what the client asked for.
func MustTranscode(path string) bool {
	return transcodedExts[ext(path)]
}

// IsCover reports whether the path is a usable folder cover image.
func IsCover(path string) bool {
	return coverExts[ext(path)]
}

// IsDescription reports whether the path is a folder description file.
func IsDescription(path string) bool {
	_, ok := descriptionExts[ext(path)]
	return ok
}
