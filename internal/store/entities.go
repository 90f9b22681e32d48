package store

import (
	"fmt"
	"path/filepath"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
)

func (s *Store) entitiesPath() string {
	return filepath.Join(s.base, entitiesFile)
}

// ListEntities returns all knowledge entities in file order.
func (s *Store) ListEntities() ([]models.KnowledgeEntity, error) {
	return readJSONLines[models.KnowledgeEntity](s.entitiesPath())
}

// UpsertEntity reconciles an observed entity into the entity file. Callers
// supply a freshly observed entity (mention_count 1, first_seen == last_seen);
// if an entity with the same slug already exists the two are merged in place,
// otherwise the observation is appended as-is. Returns the stored entity.
//
// This is the only place merge rules are applied:
//
//	mention_count  sum
//	first_seen     min
//	last_seen      max
//	sources        set union
//	metadata       array fields on both sides: union without duplicates;
//	               anything else: incoming value wins
func (s *Store) UpsertEntity(incoming models.KnowledgeEntity) (models.KnowledgeEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities, err := readJSONLines[models.KnowledgeEntity](s.entitiesPath())
	if err != nil {
		return models.KnowledgeEntity{}, err
	}

	merged := incoming
	found := false
	for i, e := range entities {
		if e.Slug == incoming.Slug {
			merged = mergeEntities(e, incoming)
			entities[i] = merged
			found = true
			break
		}
	}
	if !found {
		entities = append(entities, incoming)
	}
	if err := writeJSONLines(s, s.entitiesPath(), entities); err != nil {
		return models.KnowledgeEntity{}, err
	}
	return merged, nil
}

// DeleteEntity removes the entity with the given id.
func (s *Store) DeleteEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities, err := readJSONLines[models.KnowledgeEntity](s.entitiesPath())
	if err != nil {
		return err
	}
	kept := entities[:0]
	removed := false
	for _, e := range entities {
		if e.ID == id {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return fmt.Errorf("store: entity %s: %w", id, apperr.ErrNotFound)
	}
	return writeJSONLines(s, s.entitiesPath(), kept)
}

// mergeEntities folds an incoming observation into an existing entity.
// The operation is commutative on set/min/max/sum fields and keeps the
// existing identity (id, slug, type) and display name.
func mergeEntities(existing, incoming models.KnowledgeEntity) models.KnowledgeEntity {
	out := existing
	out.MentionCount = existing.MentionCount + incoming.MentionCount
	if incoming.FirstSeen != "" && (out.FirstSeen == "" || incoming.FirstSeen < out.FirstSeen) {
		out.FirstSeen = incoming.FirstSeen
	}
	if incoming.LastSeen > out.LastSeen {
		out.LastSeen = incoming.LastSeen
	}
	out.Sources = unionStrings(existing.Sources, incoming.Sources)
	out.Metadata = mergeMetadata(existing.Metadata, incoming.Metadata)
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// mergeMetadata applies the per-field rules: a field that is a list on both
// sides is unioned with duplicates removed; any other field takes the
// incoming value.
func mergeMetadata(existing, incoming map[string]any) map[string]any {
	if len(existing) == 0 && len(incoming) == 0 {
		return existing
	}
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		if prev, ok := out[k]; ok {
			if union, ok := unionLists(prev, v); ok {
				out[k] = union
				continue
			}
		}
		out[k] = v
	}
	return out
}

// unionLists unions two list-valued metadata fields. JSON round-trips give
// []any; Go callers may pass []string. Duplicates are detected by their
// JSON-ish string form.
func unionLists(a, b any) ([]any, bool) {
	la, ok := asList(a)
	if !ok {
		return nil, false
	}
	lb, ok := asList(b)
	if !ok {
		return nil, false
	}
	seen := make(map[string]struct{}, len(la)+len(lb))
	var out []any
	for _, v := range append(la, lb...) {
		key := fmt.Sprintf("%v", v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out, true
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
