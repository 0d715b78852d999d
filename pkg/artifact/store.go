// Package artifact owns the on-disk layout under the upload root: originals
// partitioned by category and date, generated PDFs next to their originals,
// and per-document Markdown + image namespaces under md/. The store holds no
// entity state; it is a pure path/byte mapping keyed by the relative paths
// kept inside file records.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
)

// MarkdownDirName groups every ingest namespace under one directory.
const MarkdownDirName = "md"

// Store maps relative artifact paths to files under the upload root.
type Store struct {
	root string
}

// NewStore ensures the upload root exists and returns a store rooted there.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute upload root.
func (s *Store) Root() string {
	return s.root
}

// Abs resolves a stored relative path to an absolute one.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// NewObjectName generates a collision-resistant stored filename for the
// given lowercase extension. Stored names are the only user-influenced data
// ever used as path components.
func (s *Store) NewObjectName(ext string) string {
	id := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	if ext == "" {
		return id
	}
	return id + "." + ext
}

// OriginalDir ensures the category/year/month/day partition for t exists and
// returns its root-relative path.
func (s *Store) OriginalDir(category string, t time.Time) (string, error) {
	rel := filepath.ToSlash(filepath.Join(category, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", t.Month()), fmt.Sprintf("%02d", t.Day())))
	if err := os.MkdirAll(s.Abs(rel), 0o755); err != nil {
		return "", fmt.Errorf("creating partition %s: %w", rel, err)
	}
	return rel, nil
}

// SaveOriginal streams an uploaded file into relDir under storedName and
// returns the relative path and byte count.
func (s *Store) SaveOriginal(relDir, storedName string, r io.Reader) (string, int64, error) {
	rel := filepath.ToSlash(filepath.Join(relDir, storedName))
	f, err := os.Create(s.Abs(rel))
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", rel, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.Abs(rel))
		return "", 0, fmt.Errorf("writing %s: %w", rel, err)
	}
	return rel, n, nil
}

// AllocateIngestDir generates a fresh ingest namespace under md/ and ensures
// its backing directory exists. Every namespace is globally unique, so
// concurrent pipeline runs never write into the same directory.
func (s *Store) AllocateIngestDir() (string, error) {
	id := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	if err := os.MkdirAll(s.Abs(filepath.Join(MarkdownDirName, id)), 0o755); err != nil {
		return "", fmt.Errorf("creating ingest dir %s: %w", id, err)
	}
	return id, nil
}

// WriteImage stores one parser-produced image inside the ingest namespace.
func (s *Store) WriteImage(ingestID, filename string, data []byte) error {
	if filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return fmt.Errorf("image name %q: %w", filename, errdomain.ErrInvalidArgument)
	}
	rel := filepath.Join(MarkdownDirName, ingestID, filename)
	if err := os.WriteFile(s.Abs(rel), data, 0o644); err != nil {
		return fmt.Errorf("writing image %s: %w", rel, err)
	}
	return nil
}

// MarkdownPath returns the root-relative path of an ingest namespace's
// Markdown artifact, whether or not it exists yet.
func (s *Store) MarkdownPath(ingestID string) string {
	return filepath.ToSlash(filepath.Join(MarkdownDirName, ingestID+".md"))
}

// WriteMarkdown stores the document's Markdown as md/{ingestID}.md and
// returns its relative path.
func (s *Store) WriteMarkdown(ingestID, content string) (string, error) {
	rel := s.MarkdownPath(ingestID)
	if err := os.WriteFile(s.Abs(rel), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing markdown %s: %w", rel, err)
	}
	return rel, nil
}

// ImagesDir returns the root-relative path of an ingest namespace.
func (s *Store) ImagesDir(ingestID string) string {
	return filepath.ToSlash(filepath.Join(MarkdownDirName, ingestID))
}

// RewriteImageRefs rewrites the parser's local-relative image links
// (images/{name}) to the store's namespaced relative form
// ({ingestID}/{name}) so published Markdown resolves through the public
// endpoints.
func (s *Store) RewriteImageRefs(markdown, ingestID string, filenames []string) string {
	for _, name := range filenames {
		markdown = strings.ReplaceAll(markdown, "images/"+name, ingestID+"/"+name)
	}
	return markdown
}

// RemoveFile deletes one artifact. A missing target is a no-op, since
// cleanup paths run speculatively after partial failures.
func (s *Store) RemoveFile(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(s.Abs(rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", rel, err)
	}
	return nil
}

// RemoveDir deletes a whole artifact directory. Missing targets are a no-op.
func (s *Store) RemoveDir(rel string) error {
	if rel == "" {
		return nil
	}
	if err := os.RemoveAll(s.Abs(rel)); err != nil {
		return fmt.Errorf("removing dir %s: %w", rel, err)
	}
	return nil
}

// ListDir returns the basenames of the regular files inside an artifact
// directory, in lexical order. A missing directory yields an empty list.
func (s *Store) ListDir(rel string) ([]string, error) {
	entries, err := os.ReadDir(s.Abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Exists reports whether the artifact at rel is present.
func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Abs(rel))
	return err == nil
}

// Size returns the artifact's byte size.
func (s *Store) Size(rel string) (int64, error) {
	info, err := os.Stat(s.Abs(rel))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ResolvePublic joins untrusted path parts under the upload root and rejects
// anything escaping it. Used by the unauthenticated Markdown/image
// endpoints.
func (s *Store) ResolvePublic(parts ...string) (string, error) {
	joined := filepath.Join(append([]string{s.root}, parts...)...)
	cleaned := filepath.Clean(joined)
	if cleaned != s.root && !strings.HasPrefix(cleaned, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes upload root: %w", errdomain.ErrInvalidArgument)
	}
	if _, err := os.Stat(cleaned); err != nil {
		return "", fmt.Errorf("artifact: %w", errdomain.ErrNotFound)
	}
	return cleaned, nil
}
