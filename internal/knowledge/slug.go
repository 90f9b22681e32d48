// Package knowledge maintains the identity and reconciliation of entities
// (projects, people, topics) mentioned across events.
package knowledge

import (
	"strings"

	"github.com/amberlabs/amber/internal/models"
)

// Slug returns the unique merge key for an entity: the type, a colon, and
// the lowercased name with whitespace runs collapsed to single hyphens.
// Names differing only in case or internal whitespace share a slug.
func Slug(entityType models.EntityType, name string) string {
	return string(entityType) + ":" + strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
