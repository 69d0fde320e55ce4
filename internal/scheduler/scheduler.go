// Package scheduler runs webhooks with a non-manual schedule on their
// configured cadence. Schedules on disabled webhooks never fire.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// Scheduler drives schedule-based dispatch through a single cron runner.
type Scheduler struct {
	store      *webhooks.Store
	dispatcher *webhooks.Dispatcher
	cron       *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID // webhook ID -> cron entry
}

// New creates a scheduler over the given store and dispatcher.
func New(store *webhooks.Store, dispatcher *webhooks.Dispatcher) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		cron:       cron.New(),
		entries:    make(map[string]cron.EntryID),
	}
}

// Start loads all scheduled webhooks and begins firing them.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Int("scheduled", s.Len()).Msg("Scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// Reload re-syncs cron entries with the store. Call after any webhook
// create, update, or delete.
func (s *Scheduler) Reload(ctx context.Context) error {
	defs, err := s.store.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("loading scheduled webhooks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	for _, def := range defs {
		spec, err := CronSpec(def.Schedule)
		if err != nil {
			log.Warn().
				Err(err).
				Str("webhook_id", def.ID).
				Str("webhook", def.Name).
				Msg("Skipping webhook with unusable schedule")
			continue
		}

		id := def.ID
		entryID, err := s.cron.AddFunc(spec, func() { s.fire(id) })
		if err != nil {
			log.Warn().
				Err(err).
				Str("webhook_id", def.ID).
				Str("spec", spec).
				Msg("Failed to register schedule")
			continue
		}
		s.entries[def.ID] = entryID
	}

	return nil
}

// Len reports how many webhooks are currently registered.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire re-reads the definition at fire time so edits between reloads still
// take effect, then dispatches normally.
func (s *Scheduler) fire(webhookID string) {
	ctx := context.Background()

	def, err := s.store.Get(ctx, webhookID)
	if err != nil {
		log.Error().Err(err).Str("webhook_id", webhookID).Msg("Scheduled webhook vanished")
		return
	}

	if _, err := s.dispatcher.Dispatch(ctx, def, webhooks.ModeNormal); err != nil {
		log.Error().
			Err(err).
			Str("webhook_id", def.ID).
			Str("webhook", def.Name).
			Msg("Scheduled dispatch failed")
	}
}
