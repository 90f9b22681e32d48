package store

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
)

func observation(slug, date, source string) models.KnowledgeEntity {
	return models.KnowledgeEntity{
		ID:           "id-" + slug + "-" + date,
		Type:         models.EntityProject,
		Slug:         slug,
		Name:         "Amber",
		FirstSeen:    date,
		LastSeen:     date,
		MentionCount: 1,
		Sources:      []string{source},
	}
}

func TestUpsertEntityAppendsNewSlug(t *testing.T) {
	s := testStore(t)

	stored, err := s.UpsertEntity(observation("project:amber", "2025-06-01", "chat"))
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if stored.MentionCount != 1 || stored.FirstSeen != "2025-06-01" {
		t.Errorf("stored = %+v", stored)
	}

	entities, _ := s.ListEntities()
	if len(entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(entities))
	}
}

func TestUpsertEntityMergesBySlug(t *testing.T) {
	s := testStore(t)

	first, _ := s.UpsertEntity(observation("project:amber", "2025-06-05", "chat"))
	merged, err := s.UpsertEntity(observation("project:amber", "2025-06-01", "daily-note"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if merged.ID != first.ID {
		t.Errorf("identity changed: %q -> %q", first.ID, merged.ID)
	}
	if merged.MentionCount != 2 {
		t.Errorf("mention count = %d, want 2", merged.MentionCount)
	}
	if merged.FirstSeen != "2025-06-01" {
		t.Errorf("first_seen = %q, want min", merged.FirstSeen)
	}
	if merged.LastSeen != "2025-06-05" {
		t.Errorf("last_seen = %q, want max", merged.LastSeen)
	}
	got := append([]string{}, merged.Sources...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"chat", "daily-note"}) {
		t.Errorf("sources = %v", merged.Sources)
	}

	entities, _ := s.ListEntities()
	if len(entities) != 1 {
		t.Errorf("entities = %d, want 1 after merge", len(entities))
	}
}

// Merging the same observation twice doubles the count but leaves the
// set-valued fields unchanged.
func TestUpsertEntitySelfMerge(t *testing.T) {
	s := testStore(t)

	obs := observation("project:amber", "2025-06-01", "chat")
	_, _ = s.UpsertEntity(obs)
	merged, err := s.UpsertEntity(obs)
	if err != nil {
		t.Fatal(err)
	}
	if merged.MentionCount != 2 {
		t.Errorf("mention count = %d, want 2", merged.MentionCount)
	}
	if !reflect.DeepEqual(merged.Sources, []string{"chat"}) {
		t.Errorf("sources = %v, want [chat]", merged.Sources)
	}
	if merged.FirstSeen != "2025-06-01" || merged.LastSeen != "2025-06-01" {
		t.Errorf("seen range = %q..%q", merged.FirstSeen, merged.LastSeen)
	}
}

func TestUpsertEntityMergeOrderInsensitive(t *testing.T) {
	a := observation("project:amber", "2025-06-01", "chat")
	b := observation("project:amber", "2025-06-09", "daily-note")

	ab := mergeEntities(a, b)
	ba := mergeEntities(b, a)

	if ab.MentionCount != ba.MentionCount {
		t.Errorf("counts differ: %d vs %d", ab.MentionCount, ba.MentionCount)
	}
	if ab.FirstSeen != ba.FirstSeen || ab.LastSeen != ba.LastSeen {
		t.Errorf("ranges differ: %s..%s vs %s..%s", ab.FirstSeen, ab.LastSeen, ba.FirstSeen, ba.LastSeen)
	}
	sa := append([]string{}, ab.Sources...)
	sb := append([]string{}, ba.Sources...)
	sort.Strings(sa)
	sort.Strings(sb)
	if !reflect.DeepEqual(sa, sb) {
		t.Errorf("sources differ: %v vs %v", sa, sb)
	}
}

func TestMergeMetadataRules(t *testing.T) {
	existing := map[string]any{
		"aliases": []any{"amb", "ambr"},
		"role":    "library",
		"kept":    "old",
	}
	incoming := map[string]any{
		"aliases": []any{"ambr", "amber-core"},
		"role":    "service",
	}

	out := mergeMetadata(existing, incoming)

	aliases, ok := out["aliases"].([]any)
	if !ok {
		t.Fatalf("aliases = %T", out["aliases"])
	}
	if len(aliases) != 3 {
		t.Errorf("aliases = %v, want union of 3", aliases)
	}
	if out["role"] != "service" {
		t.Errorf("role = %v, want incoming value", out["role"])
	}
	if out["kept"] != "old" {
		t.Errorf("kept = %v, want preserved", out["kept"])
	}
}

func TestMergeMetadataScalarVsListIncomingWins(t *testing.T) {
	out := mergeMetadata(
		map[string]any{"tags": []any{"a"}},
		map[string]any{"tags": "b"},
	)
	if out["tags"] != "b" {
		t.Errorf("tags = %v, want incoming scalar", out["tags"])
	}
}

func TestDeleteEntity(t *testing.T) {
	s := testStore(t)

	stored, _ := s.UpsertEntity(observation("project:amber", "2025-06-01", "chat"))
	if err := s.DeleteEntity(stored.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	entities, _ := s.ListEntities()
	if len(entities) != 0 {
		t.Errorf("entities = %d, want 0", len(entities))
	}

	if err := s.DeleteEntity(stored.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
