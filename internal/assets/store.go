// Package assets provides the budget-bounded file store for video and
// thumbnail payloads.
package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"

	apperr "github.com/ovelia/keepsake/internal/errors"
	"github.com/ovelia/keepsake/internal/logging"
)

// Kind selects which owned directory an asset lives in.
type Kind string

const (
	KindVideo     Kind = "video"
	KindThumbnail Kind = "thumbnail"
)

// dir returns the directory name for a kind.
func (k Kind) dir() string {
	if k == KindThumbnail {
		return "thumbs"
	}
	return "videos"
}

// Store owns two directories of immutable binary files and enforces a
// total-size budget by evicting the oldest files when exceeded. It is a
// best-effort cache, not a reference-counted store; callers order their
// row writes so eviction can never race a commit.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir, creating both content
// directories.
func NewStore(baseDir string) (*Store, error) {
	for _, kind := range []Kind{KindVideo, KindThumbnail} {
		if err := os.MkdirAll(filepath.Join(baseDir, kind.dir()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create asset directory: %w", err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// Save copies the source file into the owned directory for kind and
// returns the stored reference. The new name is a ULID, which encodes
// the creation instant, so eviction can order files by age from the
// name alone.
func (s *Store) Save(kind Kind, sourcePath string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAssetIO, "Save", sourcePath, err)
	}
	defer src.Close()

	name := ulid.Make().String() + strings.ToLower(filepath.Ext(sourcePath))
	destPath := filepath.Join(s.baseDir, kind.dir(), name)

	// Copy into a temp file first so an interrupted copy never leaves a
	// partial asset under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".copy-*")
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAssetIO, "Save", sourcePath, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, src)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAssetIO, "Save", sourcePath, err)
	}
	if size == 0 {
		return "", apperr.Wrap(apperr.ErrAssetIO, "Save", sourcePath, fmt.Errorf("empty file"))
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.Wrap(apperr.ErrAssetIO, "Save", sourcePath, err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", apperr.Wrap(apperr.ErrAssetIO, "Save", sourcePath, err)
	}

	s.sniffKind(kind, destPath)
	return destPath, nil
}

// sniffKind detects the stored payload's type and logs when it
// contradicts the declared kind. Detection failures are ignored; the
// caller already validated the source.
func (s *Store) sniffKind(kind Kind, path string) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return
	}
	detected := mt.String()
	mismatch := (kind == KindVideo && strings.HasPrefix(detected, "image/")) ||
		(kind == KindThumbnail && strings.HasPrefix(detected, "video/"))
	if mismatch {
		logging.Warn("asset payload type contradicts declared kind", logging.Fields{
			"kind": string(kind), "detected": detected, "ref": path,
		})
	}
}

// Delete removes stored files. Deleting an already-absent file is
// success, not an error, so cleanup after a partial failure can always
// be replayed.
func (s *Store) Delete(refs ...string) error {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
			return apperr.Wrap(apperr.ErrAssetIO, "Delete", ref, err)
		}
	}
	return nil
}

// CacheSize returns the total size in bytes across both directories.
func (s *Store) CacheSize() (int64, error) {
	var total int64
	for _, f := range s.list() {
		total += f.size
	}
	return total, nil
}

// assetFile is one stored file with its age decoded from the name.
type assetFile struct {
	path      string
	size      int64
	id        ulid.ULID
	createdAt time.Time
}

// list returns every stored file in both directories. Files whose name
// does not parse as a ULID are skipped; they were not written by Save.
func (s *Store) list() []assetFile {
	var files []assetFile
	for _, kind := range []Kind{KindVideo, KindThumbnail} {
		dirPath := filepath.Join(s.baseDir, kind.dir())
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			id, err := ulid.Parse(stem)
			if err != nil {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, assetFile{
				path:      filepath.Join(dirPath, name),
				size:      info.Size(),
				id:        id,
				createdAt: ulid.Time(id.Time()),
			})
		}
	}
	return files
}

// EnforceBudget deletes the oldest files until the total size is within
// maxBytes or no files remain. The remaining size is recomputed after
// each deletion. A file that cannot be deleted is logged and skipped;
// it simply counts against the budget on the next pass.
func (s *Store) EnforceBudget(maxBytes int64) error {
	size, err := s.CacheSize()
	if err != nil {
		return err
	}
	if size <= maxBytes {
		return nil
	}

	// ULIDs are monotonic within the same millisecond, so comparing the
	// full id orders files by creation even under rapid saves.
	files := s.list()
	sort.Slice(files, func(i, j int) bool {
		return files[i].id.Compare(files[j].id) < 0
	})

	for _, f := range files {
		if size <= maxBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			logging.Warn("eviction skipped file", logging.Fields{
				"ref": f.path, "error": err.Error(),
			})
			continue
		}
		logging.Info("evicted asset", logging.Fields{
			"ref": f.path, "bytes": f.size, "created_at": f.createdAt,
		})
		if size, err = s.CacheSize(); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes storage usage per kind.
type Stats struct {
	VideoFiles     int   `json:"video_files"`
	VideoBytes     int64 `json:"video_bytes"`
	ThumbnailFiles int   `json:"thumbnail_files"`
	ThumbnailBytes int64 `json:"thumbnail_bytes"`
	TotalBytes     int64 `json:"total_bytes"`
}

// GetStats returns storage statistics.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	videoDir := filepath.Join(s.baseDir, KindVideo.dir())
	for _, f := range s.list() {
		if filepath.Dir(f.path) == videoDir {
			stats.VideoFiles++
			stats.VideoBytes += f.size
		} else {
			stats.ThumbnailFiles++
			stats.ThumbnailBytes += f.size
		}
		stats.TotalBytes += f.size
	}
	return stats, nil
}

// Wipe removes every stored file in both directories, best-effort.
// Individual failures are logged and skipped.
func (s *Store) Wipe() error {
	for _, kind := range []Kind{KindVideo, KindThumbnail} {
		dirPath := filepath.Join(s.baseDir, kind.dir())
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(dirPath, entry.Name())
			if err := os.Remove(path); err != nil {
				logging.Warn("wipe skipped file", logging.Fields{
					"ref": path, "error": err.Error(),
				})
			}
		}
	}
	return nil
}
