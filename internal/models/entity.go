package models

// EntityType classifies a knowledge entity.
type EntityType string

// Known entity types.
const (
	EntityProject EntityType = "project"
	EntityPerson  EntityType = "person"
	EntityTopic   EntityType = "topic"
)

// ValidEntityTypes is the closed set of recognized entity types.
var ValidEntityTypes = []EntityType{EntityProject, EntityPerson, EntityTopic}

// IsValid reports whether the entity type is recognized.
func (t EntityType) IsValid() bool {
	for _, v := range ValidEntityTypes {
		if t == v {
			return true
		}
	}
	return false
}

// KnowledgeEntity is a deduplicated real-world entity built by merging
// overlapping observations over time. The slug (type + ":" + normalized
// name) is the merge key: at most one entity per slug exists in the store.
type KnowledgeEntity struct {
	ID           string         `json:"id"`
	Type         EntityType     `json:"type"`
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	FirstSeen    string         `json:"first_seen"`
	LastSeen     string         `json:"last_seen"`
	MentionCount int            `json:"mention_count"`
	Sources      []string       `json:"sources"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
