package metadata

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	apperr "github.com/ovelia/keepsake/internal/errors"
	"github.com/ovelia/keepsake/internal/logging"
	"github.com/ovelia/keepsake/internal/retry"
)

// SidecarSuffix is appended to an asset reference to name its co-located
// metadata file.
const SidecarSuffix = ".meta"

// Window is the playable subrange of a source clip, in seconds.
type Window struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// DefaultWindow is returned when no trim metadata can be found in either
// store: playback degrades to showing the whole clip instead of erroring.
func DefaultWindow() Window {
	return Window{StartTime: 0, EndTime: math.Inf(1)}
}

// Record is the indexed-store entry, one file per asset id.
type Record struct {
	ID        string  `json:"id"`
	URI       string  `json:"uri"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Duration  float64 `json:"duration"`
}

// Syncer persists the trim window for an asset in two independently
// readable places: a sidecar file next to the asset and an indexed
// store keyed by asset id. The indexed store is authoritative; the
// sidecar is a migration-era fallback kept for readers that only know
// the asset path.
type Syncer struct {
	kv     KV
	policy retry.Policy

	mu    sync.RWMutex
	cache map[string]Window
}

// NewSyncer creates a Syncer over the given indexed store.
func NewSyncer(kv KV, policy retry.Policy) *Syncer {
	return &Syncer{
		kv:     kv,
		policy: policy,
		cache:  make(map[string]Window),
	}
}

// sidecarPath names the metadata file co-located with an asset.
func sidecarPath(assetRef string) string {
	return assetRef + SidecarSuffix
}

// Write persists the window to both stores, retrying the combined write
// under the policy. After the final attempt the indexed store is re-read
// and must reflect a usable end time; otherwise the write is fatal and
// the caller must not mark the memory as created, since playback would
// silently use default bounds.
func (s *Syncer) Write(ctx context.Context, assetRef, assetID string, start, end float64) error {
	record := Record{
		ID:        assetID,
		URI:       assetRef,
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
	}
	window := Window{StartTime: start, EndTime: end}

	err := s.policy.Do(ctx, "metadata.Write", nil, func() error {
		// Both locations are written in parallel; either failing fails
		// the combined attempt.
		var wg sync.WaitGroup
		var sidecarErr, indexErr error

		wg.Add(2)
		go func() {
			defer wg.Done()
			sidecarErr = WriteJSON(sidecarPath(assetRef), window)
		}()
		go func() {
			defer wg.Done()
			indexErr = s.kv.Put(assetID, record)
		}()
		wg.Wait()

		if sidecarErr != nil {
			return fmt.Errorf("sidecar write: %w", sidecarErr)
		}
		if indexErr != nil {
			return fmt.Errorf("indexed write: %w", indexErr)
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrMetadataVerify, "Write", assetID, err)
	}

	// Read-back verification against the indexed store.
	var check Record
	if err := s.kv.Get(assetID, &check); err != nil || !(check.EndTime > 0) {
		if err == nil {
			err = fmt.Errorf("read-back end time %v is unusable", check.EndTime)
		}
		return apperr.Wrap(apperr.ErrMetadataVerify, "Write", assetID, err)
	}

	s.mu.Lock()
	s.cache[assetID] = window
	s.mu.Unlock()
	return nil
}

// Read returns the trim window for an asset, preferring the indexed
// store and falling back to the sidecar. When both are absent the
// permissive default window is returned rather than an error.
func (s *Syncer) Read(assetRef, assetID string) Window {
	s.mu.RLock()
	if w, ok := s.cache[assetID]; ok {
		s.mu.RUnlock()
		return w
	}
	s.mu.RUnlock()

	var record Record
	if err := s.kv.Get(assetID, &record); err == nil && record.EndTime > 0 {
		w := Window{StartTime: record.StartTime, EndTime: record.EndTime}
		s.mu.Lock()
		s.cache[assetID] = w
		s.mu.Unlock()
		return w
	}

	var w Window
	if err := ReadJSON(sidecarPath(assetRef), &w); err == nil && w.EndTime > 0 {
		logging.Warn("trim window served from sidecar fallback", logging.Fields{
			"id": assetID, "ref": assetRef,
		})
		return w
	}

	return DefaultWindow()
}

// Delete removes the metadata for an asset from both stores and the
// cache. Absent entries are success, so cleanup can be replayed.
func (s *Syncer) Delete(assetRef, assetID string) error {
	s.mu.Lock()
	delete(s.cache, assetID)
	s.mu.Unlock()

	if err := s.kv.Delete(assetID); err != nil {
		return apperr.Wrap(apperr.ErrAssetIO, "Delete", assetID, err)
	}
	if err := os.Remove(sidecarPath(assetRef)); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.ErrAssetIO, "Delete", assetRef, err)
	}
	return nil
}

// DropCache discards the in-memory window cache wholesale.
func (s *Syncer) DropCache() {
	s.mu.Lock()
	s.cache = make(map[string]Window)
	s.mu.Unlock()
}

// Wipe clears the indexed store and the cache. Sidecars live next to
// their assets and are wiped together with them.
func (s *Syncer) Wipe() error {
	s.DropCache()
	return s.kv.Clear()
}
