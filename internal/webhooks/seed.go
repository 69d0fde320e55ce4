package webhooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk shape of a definition seed file.
type SeedFile struct {
	Webhooks []*Definition      `yaml:"webhooks"`
	Incoming []*IncomingWebhook `yaml:"incoming_webhooks"`
}

// Seeder loads webhook definitions from a YAML file into the stores.
// Definitions are matched by name; existing ones are never overwritten, so a
// reload after user edits is safe.
type Seeder struct {
	store    *Store
	incoming *IncomingStore
	path     string
}

// NewSeeder creates a seeder for the given file path.
func NewSeeder(store *Store, incoming *IncomingStore, path string) *Seeder {
	return &Seeder{store: store, incoming: incoming, path: path}
}

// Load reads the seed file and creates any definitions not yet present.
func (s *Seeder) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	created, err := s.seedWebhooks(ctx, seed.Webhooks)
	if err != nil {
		return err
	}

	createdIncoming, err := s.seedIncoming(ctx, seed.Incoming)
	if err != nil {
		return err
	}

	log.Info().
		Str("path", s.path).
		Int("webhooks", created).
		Int("incoming", createdIncoming).
		Msg("Seed file loaded")

	return nil
}

func (s *Seeder) seedWebhooks(ctx context.Context, defs []*Definition) (int, error) {
	existing, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing webhooks: %w", err)
	}

	byName := make(map[string]struct{}, len(existing))
	for _, def := range existing {
		byName[def.Name] = struct{}{}
	}

	created := 0
	for _, def := range defs {
		if def.Name == "" {
			log.Warn().Str("path", s.path).Msg("Skipping seed webhook without a name")
			continue
		}
		if _, ok := byName[def.Name]; ok {
			continue
		}
		if err := s.store.Create(ctx, def); err != nil {
			return created, fmt.Errorf("seeding webhook %q: %w", def.Name, err)
		}
		byName[def.Name] = struct{}{}
		created++
	}

	return created, nil
}

func (s *Seeder) seedIncoming(ctx context.Context, hooks []*IncomingWebhook) (int, error) {
	existing, err := s.incoming.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing incoming webhooks: %w", err)
	}

	byPath := make(map[string]struct{}, len(existing))
	for _, hook := range existing {
		byPath[hook.EndpointPath] = struct{}{}
	}

	created := 0
	for _, hook := range hooks {
		if hook.Name == "" || hook.EndpointPath == "" {
			log.Warn().Str("path", s.path).Msg("Skipping seed incoming webhook without a name or endpoint path")
			continue
		}
		if _, ok := byPath[hook.EndpointPath]; ok {
			continue
		}
		if err := s.incoming.Create(ctx, hook); err != nil {
			return created, fmt.Errorf("seeding incoming webhook %q: %w", hook.Name, err)
		}
		byPath[hook.EndpointPath] = struct{}{}
		created++
	}

	return created, nil
}

const seedDebounce = 100 * time.Millisecond

// SeedWatcher reloads the seed file when it changes on disk.
type SeedWatcher struct {
	seeder  *Seeder
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSeedWatcher creates a watcher for the seeder's file. The file's parent
// directory is watched because editors typically replace the file on save.
func NewSeedWatcher(seeder *Seeder) (*SeedWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(seeder.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching seed directory: %w", err)
	}

	return &SeedWatcher{seeder: seeder, watcher: watcher}, nil
}

// Start begins watching for changes.
func (w *SeedWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.eventLoop(ctx)
	}()
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *SeedWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
	w.wg.Wait()
}

func (w *SeedWatcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.seeder.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Seed file watcher error")
		}
	}
}

func (w *SeedWatcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(seedDebounce, func() {
		if err := w.seeder.Load(ctx); err != nil {
			log.Error().Err(err).Str("path", w.seeder.path).Msg("Failed to reload seed file")
		}
	})
}
