package knowledge

import (
	"log/slog"

	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/parser"
)

// BackfillResult reports what a backfill pass covered.
type BackfillResult struct {
	Processed int `json:"processed"`
	Entities  int `json:"entities"`
}

// Backfill re-derives entities from the frontmatter of every stored daily
// note. This is a recovery path, deliberately weaker than live upserts: it
// reads only the projects/people/topics frontmatter lists, never the event
// log. Entities counts the net new entities it created.
func (g *Graph) Backfill(logger *slog.Logger) (BackfillResult, error) {
	before, err := g.store.ListEntities()
	if err != nil {
		return BackfillResult{}, err
	}

	dates, err := g.store.ListDates()
	if err != nil {
		return BackfillResult{}, err
	}

	var result BackfillResult
	for _, date := range dates {
		content, found, err := g.store.ReadNote(date)
		if err != nil || !found {
			continue
		}
		res := parser.Parse([]byte(content))
		result.Processed++

		noteDate := res.Date
		if noteDate == "" {
			noteDate = date
		}
		lists := []struct {
			entityType models.EntityType
			names      []string
		}{
			{models.EntityProject, res.Projects},
			{models.EntityPerson, res.People},
			{models.EntityTopic, res.Topics},
		}
		for _, l := range lists {
			for _, name := range l.names {
				_, err := g.UpsertFromObservation(Observation{
					Type:   l.entityType,
					Name:   name,
					Source: "daily-note",
					Date:   noteDate,
				})
				if err != nil {
					logger.Warn("backfill: upsert failed",
						slog.String("date", date),
						slog.String("name", name),
						slog.String("error", err.Error()))
				}
			}
		}
	}

	after, err := g.store.ListEntities()
	if err != nil {
		return BackfillResult{}, err
	}
	result.Entities = len(after) - len(before)
	return result, nil
}
