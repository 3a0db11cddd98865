// Package vault composes the repository, asset store and metadata
// synchronizer into atomic memory operations. It is the only component
// allowed to correlate database rows with asset files, and it never
// lets one outlive the other without reporting the partial failure.
package vault

import (
	"context"

	"github.com/google/uuid"

	"github.com/ovelia/keepsake/internal/assets"
	"github.com/ovelia/keepsake/internal/db"
	apperr "github.com/ovelia/keepsake/internal/errors"
	"github.com/ovelia/keepsake/internal/logging"
	"github.com/ovelia/keepsake/internal/metadata"
	"github.com/ovelia/keepsake/internal/models"
)

// DefaultCacheBudget bounds the asset cache when no budget is supplied.
const DefaultCacheBudget int64 = 500 << 20 // 500 MB

// Vault is the external-facing contract of the persistence core.
type Vault struct {
	repo   *db.Repository
	schema *db.SchemaManager
	assets *assets.Store
	meta   *metadata.Syncer
	budget int64
}

// New assembles a Vault. budget <= 0 selects DefaultCacheBudget.
func New(repo *db.Repository, schema *db.SchemaManager, store *assets.Store, meta *metadata.Syncer, budget int64) *Vault {
	if budget <= 0 {
		budget = DefaultCacheBudget
	}
	return &Vault{
		repo:   repo,
		schema: schema,
		assets: store,
		meta:   meta,
		budget: budget,
	}
}

// CreateMemoryInput carries the already-validated values supplied by
// the caller: a source clip, a pre-generated thumbnail and the trim
// window in seconds into the original capture.
type CreateMemoryInput struct {
	SourcePath    string
	ThumbnailPath string
	StartTime     float64
	EndTime       float64
	Title         string
	Description   string
	CategoryID    models.ID
}

// CreateMemory persists a new memory. The asset copies happen first,
// then the trim metadata with verification, then the database row; the
// memory exists only once the row commits. Any failure before the
// commit rolls back the asset copies so no orphaned file is referenced
// by nothing.
func (v *Vault) CreateMemory(ctx context.Context, in CreateMemoryInput) (*models.Video, error) {
	if err := models.ValidateWindow(in.StartTime, in.EndTime); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalid, "CreateMemory", in.Title, err)
	}

	videoRef, err := v.assets.Save(assets.KindVideo, in.SourcePath)
	if err != nil {
		return nil, err
	}

	thumbRef, err := v.assets.Save(assets.KindThumbnail, in.ThumbnailPath)
	if err != nil {
		v.discardAssets(videoRef, "")
		return nil, err
	}

	id := uuid.New().String()

	if err := v.meta.Write(ctx, videoRef, id, in.StartTime, in.EndTime); err != nil {
		v.discardAssets(videoRef, thumbRef)
		return nil, err
	}

	video := &models.Video{
		ID:          models.ID(id),
		URI:         videoRef,
		Thumbnail:   thumbRef,
		Duration:    in.EndTime - in.StartTime,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		CategoryID:  in.CategoryID,
	}

	if err := v.repo.AddVideo(ctx, video); err != nil {
		if mErr := v.meta.Delete(videoRef, id); mErr != nil {
			logging.Error("metadata cleanup after aborted create failed", mErr, logging.Fields{"id": id})
		}
		v.discardAssets(videoRef, thumbRef)
		return nil, err
	}

	// The repository mints a fresh id on collision; the indexed
	// metadata must follow it.
	if video.ID != models.ID(id) {
		if err := v.meta.Delete(videoRef, id); err != nil {
			logging.Error("stale metadata cleanup failed", err, logging.Fields{"id": id})
		}
		if err := v.meta.Write(ctx, videoRef, video.ID.String(), in.StartTime, in.EndTime); err != nil {
			return nil, err
		}
	}

	// Eviction runs only after the row committed, so a new asset can
	// never be reclaimed before its owning row exists.
	if err := v.assets.EnforceBudget(v.budget); err != nil {
		logging.Error("cache budget enforcement failed", err, logging.Fields{"budget": v.budget})
	}

	logging.Info("memory created", logging.Fields{
		"id": video.ID.String(), "category": video.CategoryID.String(),
	})
	return video, nil
}

// discardAssets removes just-saved files after an aborted create.
// Failures are logged, not surfaced: the files are unreferenced and the
// eviction sweep reclaims them eventually.
func (v *Vault) discardAssets(videoRef, thumbRef string) {
	if err := v.assets.Delete(videoRef, thumbRef); err != nil {
		logging.Error("asset rollback failed", err, logging.Fields{
			"video": videoRef, "thumbnail": thumbRef,
		})
	}
}

// UpdateMemory applies a partial update. When the trim window changes,
// the new window is verified in the metadata stores before the row is
// touched, so a metadata failure leaves the memory unchanged.
func (v *Vault) UpdateMemory(ctx context.Context, id models.ID, upd db.VideoUpdate) (*models.Video, error) {
	video, err := v.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, apperr.New(apperr.ErrNotFound, "UpdateMemory", id.String())
	}

	if upd.StartTime != nil || upd.EndTime != nil {
		start, end := video.StartTime, video.EndTime
		if upd.StartTime != nil {
			start = *upd.StartTime
		}
		if upd.EndTime != nil {
			end = *upd.EndTime
		}
		if err := models.ValidateWindow(start, end); err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalid, "UpdateMemory", id.String(), err)
		}
		if err := v.meta.Write(ctx, video.URI, id.String(), start, end); err != nil {
			return nil, err
		}
		duration := end - start
		upd.Duration = &duration
	}

	if err := v.repo.UpdateVideo(ctx, id, upd); err != nil {
		return nil, err
	}
	return v.repo.GetVideo(ctx, id)
}

// DeleteMemory removes a memory. The row delete (which cascades the
// annotation) commits before any file is touched: a crash in between
// leaves an orphaned file reclaimable by eviction, never a dangling
// database reference to a missing file.
func (v *Vault) DeleteMemory(ctx context.Context, id models.ID) error {
	video, err := v.repo.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if video == nil {
		return nil
	}

	if err := v.repo.DeleteVideo(ctx, id); err != nil {
		return err
	}

	if err := v.meta.Delete(video.URI, id.String()); err != nil {
		logging.Error("metadata delete failed", err, logging.Fields{"id": id.String()})
	}
	if err := v.assets.Delete(video.URI, video.Thumbnail); err != nil {
		logging.Error("asset delete failed", err, logging.Fields{"id": id.String()})
	}

	logging.Info("memory deleted", logging.Fields{"id": id.String()})
	return nil
}

// Memory pairs a video row with its optional annotation.
type Memory struct {
	Video      *models.Video      `json:"video"`
	Annotation *models.CoreMemory `json:"annotation,omitempty"`
}

// Memories returns the memories in a category, newest first. The
// sentinel category returns everything.
func (v *Vault) Memories(ctx context.Context, categoryID models.ID) ([]Memory, error) {
	videos, err := v.repo.GetVideos(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	annotations, err := v.repo.GetCoreMemories(ctx)
	if err != nil {
		return nil, err
	}

	memories := make([]Memory, 0, len(videos))
	for _, video := range videos {
		memories = append(memories, Memory{
			Video:      video,
			Annotation: annotations[video.ID],
		})
	}
	return memories, nil
}

// Window returns the trim window for a video as the playback path sees
// it: indexed store first, sidecar fallback, whole-clip default.
func (v *Vault) Window(video *models.Video) metadata.Window {
	return v.meta.Read(video.URI, video.ID.String())
}

// AnnotateMemory attaches or replaces the core-memory annotation on a
// video.
func (v *Vault) AnnotateMemory(ctx context.Context, videoID models.ID, note, color string, typeRef models.MemoryTypeRef) (*models.CoreMemory, error) {
	video, err := v.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, apperr.New(apperr.ErrNotFound, "AnnotateMemory", videoID.String())
	}

	cm := &models.CoreMemory{
		VideoID: videoID,
		Note:    note,
		Color:   color,
		TypeID:  typeRef.ID,
	}
	if err := v.repo.SaveCoreMemory(ctx, cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// ResolveMemoryType resolves a type reference against the built-in
// table union'd with the custom rows. An unresolved soft reference
// returns nil, matching the historical tolerance for deleted types.
func (v *Vault) ResolveMemoryType(ctx context.Context, ref models.MemoryTypeRef) (*models.CustomMemoryType, error) {
	for i := range models.BuiltinMemoryTypes {
		if string(models.BuiltinMemoryTypes[i].ID) == ref.ID {
			return &models.BuiltinMemoryTypes[i], nil
		}
	}
	types, err := v.repo.GetCustomMemoryTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		if string(t.ID) == ref.ID {
			return t, nil
		}
	}
	return nil, nil
}

// ClearAll drops and recreates the schema, then wipes the asset and
// metadata stores best-effort. Destructive and irreversible; callers
// gate it behind explicit confirmation.
func (v *Vault) ClearAll(ctx context.Context) error {
	if err := v.schema.Reset(ctx); err != nil {
		return err
	}
	if err := v.schema.Initialize(ctx); err != nil {
		return err
	}

	if err := v.assets.Wipe(); err != nil {
		logging.Error("asset wipe failed", err)
	}
	if err := v.meta.Wipe(); err != nil {
		logging.Error("metadata wipe failed", err)
	}

	logging.Warn("all memories cleared")
	return nil
}

// EnforceCacheBudget runs an eviction sweep against the configured
// budget, outside the create path. Useful after the budget is lowered.
func (v *Vault) EnforceCacheBudget() error {
	return v.assets.EnforceBudget(v.budget)
}

// Stats summarizes the persisted state.
type Stats struct {
	Videos        int           `json:"videos"`
	SchemaVersion int           `json:"schema_version"`
	Cache         *assets.Stats `json:"cache"`
}

// Stats reports row counts, schema version and cache usage. The count
// runs first so a fresh store is initialized before its version is read.
func (v *Vault) Stats(ctx context.Context) (*Stats, error) {
	videos := v.repo.CountVideos(ctx)

	cache, err := v.assets.GetStats()
	if err != nil {
		return nil, err
	}
	version, err := v.schema.Version(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Videos:        videos,
		SchemaVersion: version,
		Cache:         cache,
	}, nil
}
