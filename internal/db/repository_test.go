// Package db provides unit tests for CRUD repository operations.
package db

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	apperr "github.com/ovelia/keepsake/internal/errors"
	"github.com/ovelia/keepsake/internal/models"
	"github.com/ovelia/keepsake/internal/retry"
)

// setupRepo builds a Repository over a fresh in-memory database.
func setupRepo(t *testing.T) *Repository {
	t.Helper()
	db := setupTestDB(t)
	schema := NewSchemaManager(db)
	repo := NewRepository(db, schema, retry.Policy{MaxAttempts: 3, Backoff: 10 * time.Millisecond})
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testVideo(category models.ID) *models.Video {
	return &models.Video{
		URI:        "/assets/videos/01J3clip.mp4",
		Thumbnail:  "/assets/thumbs/01J3clip.jpg",
		Duration:   5,
		Title:      "Beach day",
		StartTime:  2,
		EndTime:    7,
		CategoryID: category,
	}
}

// =====================================================
// Video Repository Tests
// =====================================================

func TestAddVideo(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	v := testVideo("travel")
	if err := repo.AddVideo(ctx, v); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	if v.ID == "" {
		t.Error("expected ID to be generated")
	}
	if v.CreatedAt == 0 {
		t.Error("expected CreatedAt to be set")
	}

	got, err := repo.GetVideo(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetVideo returned nil for an existing row")
	}
	if got.Title != "Beach day" || got.StartTime != 2 || got.EndTime != 7 {
		t.Errorf("GetVideo = %+v, want saved fields", got)
	}
}

func TestAddVideo_idCollisionMintsFreshID(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	first := testVideo("travel")
	first.ID = "fixed-id"
	if err := repo.AddVideo(ctx, first); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	second := testVideo("travel")
	second.ID = "fixed-id"
	second.Title = "Second clip"
	if err := repo.AddVideo(ctx, second); err != nil {
		t.Fatalf("AddVideo with colliding id failed: %v", err)
	}

	if second.ID == "fixed-id" {
		t.Error("expected a fresh id to be minted on collision")
	}

	// The original row must be untouched.
	got, _ := repo.GetVideo(ctx, "fixed-id")
	if got == nil || got.Title != "Beach day" {
		t.Errorf("original row was overwritten: %+v", got)
	}
	if n := repo.CountVideos(ctx); n != 2 {
		t.Errorf("CountVideos = %d, want 2", n)
	}
}

func TestGetVideo_absentReturnsNil(t *testing.T) {
	repo := setupRepo(t)

	got, err := repo.GetVideo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetVideo(missing) = %+v, want nil", got)
	}
}

func TestGetVideos_categoryFilter(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	a := testVideo("travel")
	if err := repo.AddVideo(ctx, a); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}
	b := testVideo("family")
	if err := repo.AddVideo(ctx, b); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	travel, _ := repo.GetVideos(ctx, "travel")
	if len(travel) != 1 || travel[0].ID != a.ID {
		t.Errorf("GetVideos(travel) = %v, want only video A", travel)
	}

	family, _ := repo.GetVideos(ctx, "family")
	if len(family) != 1 || family[0].ID != b.ID {
		t.Errorf("GetVideos(family) = %v, want only video B", family)
	}

	all, _ := repo.GetVideos(ctx, models.SentinelCategoryID)
	if len(all) != 2 {
		t.Errorf("GetVideos(all) returned %d videos, want 2", len(all))
	}
}

func TestUpdateVideo_partial(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	v := testVideo("travel")
	if err := repo.AddVideo(ctx, v); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	title := "Renamed"
	if err := repo.UpdateVideo(ctx, v.ID, VideoUpdate{Title: &title}); err != nil {
		t.Fatalf("UpdateVideo failed: %v", err)
	}

	got, _ := repo.GetVideo(ctx, v.ID)
	if got.Title != "Renamed" {
		t.Errorf("Title = %q, want 'Renamed'", got.Title)
	}
	// Untouched fields survive.
	if got.StartTime != 2 || got.EndTime != 7 || got.CategoryID != "travel" {
		t.Errorf("unrelated fields changed: %+v", got)
	}
}

func TestUpdateVideo_zeroFieldsIsNoOp(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	v := testVideo("travel")
	if err := repo.AddVideo(ctx, v); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	if err := repo.UpdateVideo(ctx, v.ID, VideoUpdate{}); err != nil {
		t.Errorf("UpdateVideo with zero fields should be a successful no-op, got %v", err)
	}
}

func TestUpdateVideo_notFound(t *testing.T) {
	repo := setupRepo(t)

	title := "x"
	err := repo.UpdateVideo(context.Background(), "missing", VideoUpdate{Title: &title})
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateVideo(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestDeleteVideo_cascadesCoreMemory(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	v := testVideo("travel")
	if err := repo.AddVideo(ctx, v); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}
	cm := &models.CoreMemory{VideoID: v.ID, Note: "best day", Color: "#F59E0B", TypeID: "joy"}
	if err := repo.SaveCoreMemory(ctx, cm); err != nil {
		t.Fatalf("SaveCoreMemory failed: %v", err)
	}

	if err := repo.DeleteVideo(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}

	if got, _ := repo.GetVideo(ctx, v.ID); got != nil {
		t.Error("video row survived deletion")
	}
	if got, _ := repo.GetCoreMemory(ctx, v.ID); got != nil {
		t.Error("core memory survived cascade deletion")
	}
}

// =====================================================
// Category Repository Tests
// =====================================================

func TestDeleteCategory_reassignsVideos(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	v := testVideo("travel")
	if err := repo.AddVideo(ctx, v); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	if err := repo.DeleteCategory(ctx, "travel"); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	got, _ := repo.GetVideo(ctx, v.ID)
	if got.CategoryID != models.SentinelCategoryID {
		t.Errorf("CategoryID = %q after category deletion, want sentinel", got.CategoryID)
	}

	// Video A now appears under "all" and under no other category list.
	all, _ := repo.GetVideos(ctx, models.SentinelCategoryID)
	if len(all) != 1 || all[0].ID != v.ID {
		t.Errorf("GetVideos(all) = %v, want video A", all)
	}
	family, _ := repo.GetVideos(ctx, "family")
	if len(family) != 0 {
		t.Errorf("GetVideos(family) = %v, want empty", family)
	}
}

func TestDeleteCategory_sentinelRejected(t *testing.T) {
	repo := setupRepo(t)

	err := repo.DeleteCategory(context.Background(), models.SentinelCategoryID)
	if !apperr.Is(err, apperr.ErrReferential) {
		t.Errorf("DeleteCategory(all) error = %v, want REFERENTIAL_VIOLATION", err)
	}

	// The sentinel row must still exist.
	c, _ := repo.GetCategoryByKey(context.Background(), "all")
	if c == nil {
		t.Error("sentinel category missing after rejected delete")
	}
}

func TestAddCategory_andLookupByKey(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	c := &models.Category{Key: "pets", Name: "Pets", Icon: "paw", Color: "#22C55E"}
	if err := repo.AddCategory(ctx, c); err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}

	got, _ := repo.GetCategoryByKey(ctx, "pets")
	if got == nil || got.ID != c.ID {
		t.Errorf("GetCategoryByKey(pets) = %+v, want the added category", got)
	}

	cats, _ := repo.GetCategories(ctx)
	if len(cats) != len(models.DefaultCategories())+1 {
		t.Errorf("GetCategories returned %d rows", len(cats))
	}
	if !cats[0].IsSentinel() {
		t.Errorf("first category = %q, want sentinel first", cats[0].ID)
	}
}

// =====================================================
// CoreMemory Repository Tests
// =====================================================

func TestSaveCoreMemory_upsert(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	v := testVideo("family")
	if err := repo.AddVideo(ctx, v); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	cm := &models.CoreMemory{VideoID: v.ID, Note: "first note", Color: "#000", TypeID: "joy"}
	if err := repo.SaveCoreMemory(ctx, cm); err != nil {
		t.Fatalf("SaveCoreMemory failed: %v", err)
	}

	cm2 := &models.CoreMemory{VideoID: v.ID, Note: "edited note", Color: "#FFF", TypeID: "love"}
	if err := repo.SaveCoreMemory(ctx, cm2); err != nil {
		t.Fatalf("SaveCoreMemory (second) failed: %v", err)
	}

	got, _ := repo.GetCoreMemory(ctx, v.ID)
	if got == nil || got.Note != "edited note" || got.TypeID != "love" {
		t.Errorf("GetCoreMemory = %+v, want the replaced annotation", got)
	}

	memories, _ := repo.GetCoreMemories(ctx)
	if len(memories) != 1 {
		t.Errorf("GetCoreMemories = %d rows, want 1", len(memories))
	}
}

func TestSaveCoreMemory_requiresVideoRow(t *testing.T) {
	repo := setupRepo(t)

	cm := &models.CoreMemory{VideoID: "no-such-video", Note: "n", Color: "#000", TypeID: "joy"}
	if err := repo.SaveCoreMemory(context.Background(), cm); err == nil {
		t.Error("expected foreign key violation for core memory without a video row")
	}
}

// =====================================================
// CustomMemoryType Repository Tests
// =====================================================

func TestCustomMemoryType_CRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	mt := &models.CustomMemoryType{Name: "Nostalgia", Icon: "clock", Color: "#9CA3AF"}
	if err := repo.AddCustomMemoryType(ctx, mt); err != nil {
		t.Fatalf("AddCustomMemoryType failed: %v", err)
	}

	types, _ := repo.GetCustomMemoryTypes(ctx)
	if len(types) != 1 || types[0].Name != "Nostalgia" {
		t.Errorf("GetCustomMemoryTypes = %v", types)
	}

	if err := repo.DeleteCustomMemoryType(ctx, mt.ID); err != nil {
		t.Fatalf("DeleteCustomMemoryType failed: %v", err)
	}
	types, _ = repo.GetCustomMemoryTypes(ctx)
	if len(types) != 0 {
		t.Errorf("GetCustomMemoryTypes after delete = %v, want empty", types)
	}
}
