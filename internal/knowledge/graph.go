package knowledge

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/store"
)

// Graph reconciles entity observations into the store's entity file.
type Graph struct {
	store *store.Store
}

// NewGraph creates a Graph over the given store.
func NewGraph(s *store.Store) *Graph {
	return &Graph{store: s}
}

// Observation is one sighting of an entity in a source on a date.
type Observation struct {
	Type     models.EntityType `json:"type"`
	Name     string            `json:"name"`
	Source   string            `json:"source"`
	Date     string            `json:"date"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// Validate checks the observation's required fields.
func (o Observation) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Type, validation.Required,
			validation.In(models.EntityProject, models.EntityPerson, models.EntityTopic)),
		validation.Field(&o.Name, validation.Required),
		validation.Field(&o.Source, validation.Required),
		validation.Field(&o.Date, validation.Required, validation.Date(models.DateLayout)),
	)
}

// UpsertFromObservation is the single entry point for recording an entity
// sighting. It validates the observation before any I/O, constructs a fresh
// mention_count=1 entity, and lets the store reconcile it against any
// existing entity with the same slug.
func (g *Graph) UpsertFromObservation(obs Observation) (models.KnowledgeEntity, error) {
	if err := obs.Validate(); err != nil {
		return models.KnowledgeEntity{}, fmt.Errorf("knowledge: %w: %v", apperr.ErrInvalidEntity, err)
	}
	entity := models.KnowledgeEntity{
		ID:           uuid.NewString(),
		Type:         obs.Type,
		Slug:         Slug(obs.Type, obs.Name),
		Name:         obs.Name,
		FirstSeen:    obs.Date,
		LastSeen:     obs.Date,
		MentionCount: 1,
		Sources:      []string{obs.Source},
		Metadata:     obs.Metadata,
	}
	return g.store.UpsertEntity(entity)
}

// Read returns all entities, optionally filtered by type. An empty type
// returns everything.
func (g *Graph) Read(entityType models.EntityType) ([]models.KnowledgeEntity, error) {
	entities, err := g.store.ListEntities()
	if err != nil {
		return nil, err
	}
	if entityType == "" {
		return entities, nil
	}
	filtered := make([]models.KnowledgeEntity, 0, len(entities))
	for _, e := range entities {
		if e.Type == entityType {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// Delete removes an entity by id.
func (g *Graph) Delete(id string) error {
	return g.store.DeleteEntity(id)
}
