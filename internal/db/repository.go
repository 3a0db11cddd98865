// Package db provides CRUD repository operations for Keepsake data models.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "github.com/ovelia/keepsake/internal/errors"
	"github.com/ovelia/keepsake/internal/logging"
	"github.com/ovelia/keepsake/internal/models"
	"github.com/ovelia/keepsake/internal/retry"
)

// Repository provides transactional CRUD over the four entity tables.
//
// Writes are guaranteed-or-reported: every mutating statement runs under
// the lock-retry policy and surfaces a fatal error once the budget is
// exhausted. Reads are best-effort: a read failure logs and returns an
// empty result, since callers treat "no data yet" and "read failed" the
// same way.
type Repository struct {
	db     *sql.DB
	schema *SchemaManager
	policy retry.Policy

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance. The schema manager
// is consulted lazily before every mutation so statements never run
// against a missing schema.
func NewRepository(db *sql.DB, schema *SchemaManager, policy retry.Policy) *Repository {
	return &Repository{db: db, schema: schema, policy: policy}
}

// prepareStmt gets or creates a prepared statement from cache.
func (r *Repository) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// ensureSchema lazily initializes the schema before a statement runs.
func (r *Repository) ensureSchema(ctx context.Context) error {
	return r.schema.Initialize(ctx)
}

// exec runs a mutating statement under the retry policy, retrying only
// lock contention.
func (r *Repository) exec(ctx context.Context, op, entity string, fn func() error) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	err := r.policy.Do(ctx, op, IsBusy, fn)
	if err == nil {
		return nil
	}
	if IsBusy(err) {
		return apperr.Wrap(apperr.ErrStoreBusy, op, entity, err)
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(apperr.ErrDatabase, op, entity, err)
}

// =====================================================
// Video Operations
// =====================================================

// AddVideo inserts a video row. An empty id is minted; an id that
// collides with an existing row is silently replaced by a fresh one so
// the existing row is never overwritten.
func (r *Repository) AddVideo(ctx context.Context, v *models.Video) error {
	if v.ID == "" {
		v.ID = models.ID(uuid.New().String())
	}
	if v.CategoryID == "" {
		v.CategoryID = models.SentinelCategoryID
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().Unix()
	}

	query := `
	INSERT INTO videos (id, uri, thumbnail, duration, created_at, title, description, start_time, end_time, category_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return r.exec(ctx, "AddVideo", v.ID.String(), func() error {
		for {
			_, err := r.db.ExecContext(ctx, query, v.ID, v.URI, v.Thumbnail, v.Duration,
				v.CreatedAt, v.Title, nullable(v.Description), v.StartTime, v.EndTime, v.CategoryID)
			if isUniqueViolation(err) {
				fresh := models.ID(uuid.New().String())
				logging.Warn("video id collision, minting fresh id", logging.Fields{
					"id": v.ID.String(), "fresh": fresh.String(),
				})
				v.ID = fresh
				continue
			}
			return err
		}
	})
}

// GetVideo retrieves a video by id. Best-effort: a missing row or a
// failed read both return nil.
func (r *Repository) GetVideo(ctx context.Context, id models.ID) (*models.Video, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := `
	SELECT id, uri, thumbnail, duration, created_at, title, description, start_time, end_time, category_id
	FROM videos WHERE id = ?
	`
	stmt, err := r.prepareStmt(query)
	if err != nil {
		return nil, err
	}

	v, err := scanVideo(stmt.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logging.Error("video read failed", err, logging.Fields{"id": id.String()})
		return nil, nil
	}
	return v, nil
}

// GetVideos returns videos newest-first. The sentinel category (or an
// empty id) returns every video; any other id filters. Best-effort.
func (r *Repository) GetVideos(ctx context.Context, categoryID models.ID) ([]*models.Video, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	baseQuery := `
	SELECT id, uri, thumbnail, duration, created_at, title, description, start_time, end_time, category_id
	FROM videos
	`
	orderBy := " ORDER BY created_at DESC"

	var query string
	var args []interface{}
	if categoryID == "" || categoryID == models.SentinelCategoryID {
		query = baseQuery + orderBy
	} else {
		query = baseQuery + " WHERE category_id = ?" + orderBy
		args = append(args, categoryID)
	}

	stmt, err := r.prepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		logging.Error("video list failed", err, logging.Fields{"category": categoryID.String()})
		return nil, nil
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			logging.Error("video scan failed", err, nil)
			return nil, nil
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		logging.Error("video iteration failed", err, nil)
		return nil, nil
	}
	return videos, nil
}

// CountVideos returns the number of video rows, 0 on read failure.
func (r *Repository) CountVideos(ctx context.Context) int {
	if err := r.ensureSchema(ctx); err != nil {
		return 0
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		logging.Error("video count failed", err, nil)
		return 0
	}
	return n
}

// VideoUpdate carries the fields of a partial video update. Nil fields
// are left untouched.
type VideoUpdate struct {
	Title       *string
	Description *string
	Thumbnail   *string
	StartTime   *float64
	EndTime     *float64
	Duration    *float64
	CategoryID  *models.ID
}

// UpdateVideo applies a partial update. An update with zero supplied
// fields is a successful no-op.
func (r *Repository) UpdateVideo(ctx context.Context, id models.ID, upd VideoUpdate) error {
	var set []string
	var args []interface{}

	if upd.Title != nil {
		set, args = append(set, "title = ?"), append(args, *upd.Title)
	}
	if upd.Description != nil {
		set, args = append(set, "description = ?"), append(args, nullable(*upd.Description))
	}
	if upd.Thumbnail != nil {
		set, args = append(set, "thumbnail = ?"), append(args, *upd.Thumbnail)
	}
	if upd.StartTime != nil {
		set, args = append(set, "start_time = ?"), append(args, *upd.StartTime)
	}
	if upd.EndTime != nil {
		set, args = append(set, "end_time = ?"), append(args, *upd.EndTime)
	}
	if upd.Duration != nil {
		set, args = append(set, "duration = ?"), append(args, *upd.Duration)
	}
	if upd.CategoryID != nil {
		set, args = append(set, "category_id = ?"), append(args, *upd.CategoryID)
	}

	if len(set) == 0 {
		return nil
	}

	query := "UPDATE videos SET " + strings.Join(set, ", ") + " WHERE id = ?"
	args = append(args, id)

	return r.exec(ctx, "UpdateVideo", id.String(), func() error {
		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return apperr.New(apperr.ErrNotFound, "UpdateVideo", id.String())
		}
		return nil
	})
}

// DeleteVideo removes a video row; its core memory is removed by the
// ON DELETE CASCADE constraint. Deleting an absent row is a no-op.
func (r *Repository) DeleteVideo(ctx context.Context, id models.ID) error {
	return r.exec(ctx, "DeleteVideo", id.String(), func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
		return err
	})
}

// scanVideo reads one video row from a row scanner.
func scanVideo(row interface{ Scan(...interface{}) error }) (*models.Video, error) {
	var v models.Video
	var description sql.NullString
	var categoryID sql.NullString
	err := row.Scan(&v.ID, &v.URI, &v.Thumbnail, &v.Duration, &v.CreatedAt,
		&v.Title, &description, &v.StartTime, &v.EndTime, &categoryID)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		v.Description = description.String
	}
	// category_id is ON DELETE SET NULL; surface NULL as the sentinel.
	if categoryID.Valid {
		v.CategoryID = models.ID(categoryID.String)
	} else {
		v.CategoryID = models.SentinelCategoryID
	}
	return &v, nil
}

// nullable maps an empty string to NULL for optional text columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// =====================================================
// Category Operations
// =====================================================

// AddCategory inserts a category.
func (r *Repository) AddCategory(ctx context.Context, c *models.Category) error {
	if c.ID == "" {
		c.ID = models.ID(uuid.New().String())
	}
	query := `INSERT INTO categories (id, key, name, icon, color) VALUES (?, ?, ?, ?, ?)`
	return r.exec(ctx, "AddCategory", c.ID.String(), func() error {
		_, err := r.db.ExecContext(ctx, query, c.ID, c.Key, c.Name, c.Icon, c.Color)
		return err
	})
}

// GetCategories returns all categories, sentinel first. Best-effort.
func (r *Repository) GetCategories(ctx context.Context) ([]*models.Category, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, key, name, icon, color FROM categories ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END, name`
	rows, err := r.db.QueryContext(ctx, query, models.SentinelCategoryID)
	if err != nil {
		logging.Error("category list failed", err, nil)
		return nil, nil
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Key, &c.Name, &c.Icon, &c.Color); err != nil {
			logging.Error("category scan failed", err, nil)
			return nil, nil
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		logging.Error("category iteration failed", err, nil)
		return nil, nil
	}
	return categories, nil
}

// GetCategoryByKey retrieves a category by its stable machine key.
// Best-effort.
func (r *Repository) GetCategoryByKey(ctx context.Context, key string) (*models.Category, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var c models.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, key, name, icon, color FROM categories WHERE key = ?`, key).
		Scan(&c.ID, &c.Key, &c.Name, &c.Icon, &c.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logging.Error("category read failed", err, logging.Fields{"key": key})
		return nil, nil
	}
	return &c, nil
}

// DeleteCategory removes a category after reassigning its videos to the
// sentinel category, both inside one transaction. Deleting the sentinel
// is rejected before any transaction opens.
func (r *Repository) DeleteCategory(ctx context.Context, id models.ID) error {
	if id == models.SentinelCategoryID {
		return apperr.New(apperr.ErrReferential, "DeleteCategory", id.String())
	}

	return r.exec(ctx, "DeleteCategory", id.String(), func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`UPDATE videos SET category_id = ? WHERE category_id = ?`,
			models.SentinelCategoryID, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// =====================================================
// CoreMemory Operations
// =====================================================

// SaveCoreMemory inserts or replaces the annotation for a video. The
// row is keyed 1:1 by video id; a second save overwrites the first.
func (r *Repository) SaveCoreMemory(ctx context.Context, cm *models.CoreMemory) error {
	if cm.CreatedAt == 0 {
		cm.CreatedAt = time.Now().Unix()
	}
	query := `
	INSERT INTO core_memories (video_id, note, color, created_at, type_id)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(video_id) DO UPDATE SET note = excluded.note, color = excluded.color, type_id = excluded.type_id
	`
	return r.exec(ctx, "SaveCoreMemory", cm.VideoID.String(), func() error {
		_, err := r.db.ExecContext(ctx, query, cm.VideoID, cm.Note, cm.Color, cm.CreatedAt, cm.TypeID)
		return err
	})
}

// GetCoreMemory retrieves the annotation for a video. Best-effort.
func (r *Repository) GetCoreMemory(ctx context.Context, videoID models.ID) (*models.CoreMemory, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var cm models.CoreMemory
	err := r.db.QueryRowContext(ctx,
		`SELECT video_id, note, color, created_at, type_id FROM core_memories WHERE video_id = ?`, videoID).
		Scan(&cm.VideoID, &cm.Note, &cm.Color, &cm.CreatedAt, &cm.TypeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logging.Error("core memory read failed", err, logging.Fields{"video_id": videoID.String()})
		return nil, nil
	}
	return &cm, nil
}

// GetCoreMemories returns all annotations keyed by video id. Best-effort.
func (r *Repository) GetCoreMemories(ctx context.Context) (map[models.ID]*models.CoreMemory, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT video_id, note, color, created_at, type_id FROM core_memories`)
	if err != nil {
		logging.Error("core memory list failed", err, nil)
		return nil, nil
	}
	defer rows.Close()

	memories := make(map[models.ID]*models.CoreMemory)
	for rows.Next() {
		var cm models.CoreMemory
		if err := rows.Scan(&cm.VideoID, &cm.Note, &cm.Color, &cm.CreatedAt, &cm.TypeID); err != nil {
			logging.Error("core memory scan failed", err, nil)
			return nil, nil
		}
		memories[cm.VideoID] = &cm
	}
	if err := rows.Err(); err != nil {
		logging.Error("core memory iteration failed", err, nil)
		return nil, nil
	}
	return memories, nil
}

// DeleteCoreMemory removes the annotation for a video without touching
// the video row.
func (r *Repository) DeleteCoreMemory(ctx context.Context, videoID models.ID) error {
	return r.exec(ctx, "DeleteCoreMemory", videoID.String(), func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM core_memories WHERE video_id = ?`, videoID)
		return err
	})
}

// =====================================================
// CustomMemoryType Operations
// =====================================================

// AddCustomMemoryType inserts a user-defined memory type.
func (r *Repository) AddCustomMemoryType(ctx context.Context, t *models.CustomMemoryType) error {
	if t.ID == "" {
		t.ID = models.ID(uuid.New().String())
	}
	query := `INSERT INTO custom_memory_types (id, name, icon, color) VALUES (?, ?, ?, ?)`
	return r.exec(ctx, "AddCustomMemoryType", t.ID.String(), func() error {
		_, err := r.db.ExecContext(ctx, query, t.ID, t.Name, t.Icon, t.Color)
		return err
	})
}

// GetCustomMemoryTypes returns all user-defined memory types. Best-effort.
func (r *Repository) GetCustomMemoryTypes(ctx context.Context) ([]*models.CustomMemoryType, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, icon, color FROM custom_memory_types ORDER BY name`)
	if err != nil {
		logging.Error("memory type list failed", err, nil)
		return nil, nil
	}
	defer rows.Close()

	var types []*models.CustomMemoryType
	for rows.Next() {
		var t models.CustomMemoryType
		if err := rows.Scan(&t.ID, &t.Name, &t.Icon, &t.Color); err != nil {
			logging.Error("memory type scan failed", err, nil)
			return nil, nil
		}
		types = append(types, &t)
	}
	if err := rows.Err(); err != nil {
		logging.Error("memory type iteration failed", err, nil)
		return nil, nil
	}
	return types, nil
}

// DeleteCustomMemoryType removes a user-defined memory type. Core
// memories referencing it keep their type id; the reference is soft and
// resolves to nothing afterward, matching the historical behavior.
func (r *Repository) DeleteCustomMemoryType(ctx context.Context, id models.ID) error {
	return r.exec(ctx, "DeleteCustomMemoryType", id.String(), func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM custom_memory_types WHERE id = ?`, id)
		return err
	})
}
