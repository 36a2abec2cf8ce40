package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/codemorph/internal/langmap"
)

// DiscoveredFile is a handle to a convertible file found during the
// tree walk. Content is not loaded here; ReadFile fetches it on demand
// so large repositories stay memory-bounded.
type DiscoveredFile struct {
	Path     string
	Language string
	Size     int64

	ref string
}

// DiscoverOptions filters the tree walk.
type DiscoverOptions struct {
	Branch          string
	SourceLanguages []string // canonical names; empty means all supported
	IncludePatterns []string // glob patterns; empty means include all
	ExcludePatterns []string
	MaxFileSize     int64 // skip larger files; 0 disables the check
	MaxFiles        int   // stop after this many matches; 0 disables
}

type contentEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

// DiscoverFiles walks the branch tree iteratively (a queue of
// directories, no recursion) and returns handles for files whose
// extension maps to a requested source language. Order follows the
// remote listing order and is not guaranteed stable across calls.
func (c *Client) DiscoverFiles(ctx context.Context, repo *Repository, opts DiscoverOptions) ([]DiscoveredFile, error) {
	allowed := make(map[string]bool)
	for _, ext := range langmap.ExtensionsFor(opts.SourceLanguages) {
		allowed[ext] = true
	}

	var found []DiscoveredFile
	dirs := []string{""}

	for len(dirs) > 0 {
		dir := dirs[0]
		dirs = dirs[1:]

		var entries []contentEntry
		p := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s",
			repo.Owner, repo.Name, escapePath(dir), url.QueryEscape(opts.Branch))
		if err := c.get(ctx, p, &entries); err != nil {
			return nil, fmt.Errorf("list %q: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.Type == "dir" {
				dirs = append(dirs, entry.Path)
				continue
			}
			if entry.Type != "file" {
				continue
			}

			lang := langmap.DetectLanguage(entry.Name)
			if lang == "" || !allowedLanguage(allowed, entry.Name) {
				continue
			}
			if !matchesPatterns(entry.Path, opts.IncludePatterns, opts.ExcludePatterns) {
				continue
			}
			if opts.MaxFileSize > 0 && entry.Size > opts.MaxFileSize {
				log.Debug().Str("path", entry.Path).Int64("size", entry.Size).
					Msg("skipping file over size limit")
				continue
			}

			found = append(found, DiscoveredFile{
				Path:     entry.Path,
				Language: lang,
				Size:     entry.Size,
				ref:      opts.Branch,
			})
			log.Info().Str("path", entry.Path).Str("language", lang).Msg("found convertible file")

			if opts.MaxFiles > 0 && len(found) >= opts.MaxFiles {
				log.Warn().Int("limit", opts.MaxFiles).Msg("file discovery hit per-repo limit")
				return found, nil
			}
		}
	}

	log.Info().Int("count", len(found)).Msg("file discovery complete")
	return found, nil
}

// ReadFile fetches and decodes a discovered file's content. Content that
// is not valid UTF-8 yields DecodeError; binary files are normally
// filtered upstream by extension, but the check is required regardless.
func (c *Client) ReadFile(ctx context.Context, repo *Repository, file DiscoveredFile) (string, error) {
	var entry contentEntry
	p := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s",
		repo.Owner, repo.Name, escapePath(file.Path), url.QueryEscape(file.ref))
	if err := c.get(ctx, p, &entry); err != nil {
		return "", fmt.Errorf("fetch %s: %w", file.Path, err)
	}

	// The contents API omits inline content for blobs over 1 MB; an
	// empty payload for a file with size would otherwise pass decoding
	// and be converted as an empty file.
	if entry.Content == "" && entry.Size > 0 {
		return "", &DecodeError{Path: file.Path, Err: fmt.Errorf("content not returned inline (%d bytes)", entry.Size)}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		return "", &DecodeError{Path: file.Path, Err: err}
	}
	if !utf8.Valid(raw) {
		return "", &DecodeError{Path: file.Path, Err: fmt.Errorf("content is not valid UTF-8")}
	}
	return string(raw), nil
}

func allowedLanguage(allowed map[string]bool, name string) bool {
	for ext := range allowed {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// matchesPatterns applies include/exclude globs against both the full
// path and the base name; include wins only when no exclude matches.
func matchesPatterns(filePath string, include, exclude []string) bool {
	base := path.Base(filePath)

	for _, pat := range exclude {
		if globMatch(pat, filePath) || globMatch(pat, base) {
			return false
		}
	}

	if len(include) == 0 {
		return true
	}
	for _, pat := range include {
		if globMatch(pat, filePath) || globMatch(pat, base) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// escapePath escapes each path segment without escaping the separators.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
