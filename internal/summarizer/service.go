package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amberlabs/amber/internal/knowledge"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/parser"
	"github.com/amberlabs/amber/internal/status"
	"github.com/amberlabs/amber/internal/store"
)

// NoteWrittenFunc is notified after a daily note lands.
type NoteWrittenFunc func(date string)

// Service runs daily summarization over the store.
type Service struct {
	store     *store.Store
	graph     *knowledge.Graph
	completer Completer
	tracker   *status.Tracker
	logger    *slog.Logger
	onNote    NoteWrittenFunc
	now       func() time.Time
}

// NewService creates a summarizer Service. onNote may be nil.
func NewService(s *store.Store, g *knowledge.Graph, c Completer, tracker *status.Tracker, logger *slog.Logger, onNote NoteWrittenFunc) *Service {
	return &Service{store: s, graph: g, completer: c, tracker: tracker, logger: logger, onNote: onNote, now: time.Now}
}

// SummarizeDay reads the date's events, generates the daily note, records
// its frontmatter entities, and clears the date's staging log. A date with
// no events is a no-op.
func (s *Service) SummarizeDay(ctx context.Context, date string) error {
	events, err := s.store.ReadEvents(date)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		s.logger.Info("summarizer: no events", slog.String("date", date))
		return nil
	}

	note, err := s.completer.Complete(ctx, BuildDailyPrompt(date, events))
	if err != nil {
		return fmt.Errorf("summarizer: generate note for %s: %w", date, err)
	}
	if err := s.store.WriteNote(date, note); err != nil {
		return err
	}

	s.recordEntities(date, note)

	if err := s.store.ClearEvents(date); err != nil {
		return err
	}
	s.tracker.ResetBuffered()
	s.tracker.SetLastSummarized(date)
	if s.onNote != nil {
		s.onNote(date)
	}
	s.logger.Info("summarizer: daily note written", slog.String("date", date))
	return nil
}

// recordEntities upserts the note's frontmatter entities into the graph.
// Failures here never fail the summarization; backfill can recover later.
func (s *Service) recordEntities(date, note string) {
	res := parser.Parse([]byte(note))
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
			_, err := s.graph.UpsertFromObservation(knowledge.Observation{
				Type:   l.entityType,
				Name:   name,
				Source: "daily-note",
				Date:   date,
			})
			if err != nil {
				s.logger.Warn("summarizer: entity upsert failed",
					slog.String("name", name),
					slog.String("error", err.Error()))
			}
		}
	}
}

// RunScheduler checks the wall clock every minute and summarizes the
// current date once when it reaches dailyHour. Values received on trigger
// summarize the current date immediately, regardless of the hour.
func (s *Service) RunScheduler(ctx context.Context, dailyHour int, trigger <-chan struct{}) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastDailyDate string
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			now := s.now()
			today := now.Format(models.DateLayout)
			if now.Hour() == dailyHour && lastDailyDate != today {
				lastDailyDate = today
				if err := s.SummarizeDay(ctx, today); err != nil {
					s.logger.Error("summarizer: scheduled run failed",
						slog.String("date", today),
						slog.String("error", err.Error()))
				}
			}

		case _, ok := <-trigger:
			if !ok {
				return nil
			}
			today := s.now().Format(models.DateLayout)
			if err := s.SummarizeDay(ctx, today); err != nil {
				s.logger.Error("summarizer: manual run failed",
					slog.String("date", today),
					slog.String("error", err.Error()))
			}
		}
	}
}
