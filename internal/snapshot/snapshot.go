package snapshot

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/tandemhq/tandem/backend/internal/board"
	"github.com/tandemhq/tandem/backend/internal/db"
)

// Periodic persistence of board contents, kept off the message hot path.
// Only the drawable collections are written; action logs and redo stacks
// stay volatile by design, so undo history does not survive a restart.

type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: time.Minute}
}

type Service struct {
	store    *board.Store
	database *db.Database
	config   Config
	stop     chan struct{}
	wg       sync.WaitGroup

	// Last persisted revision per workspace, so unchanged boards are skipped.
	saved map[string]uint64
}

func New(store *board.Store, database *db.Database, config Config) *Service {
	return &Service{
		store:    store,
		database: database,
		config:   config,
		stop:     make(chan struct{}),
		saved:    make(map[string]uint64),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Snapshot service started (interval: %v)", s.config.Interval)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Snapshot service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.PersistAll()
			return
		case <-ticker.C:
			s.PersistAll()
		}
	}
}

// PersistAll writes every board whose revision moved since its last save.
func (s *Service) PersistAll() {
	savedCount := 0
	for _, wid := range s.store.WorkspaceIDs() {
		rev := s.store.Revision(wid)
		if rev == s.saved[wid] {
			continue
		}
		if err := s.persist(wid, rev); err != nil {
			log.Printf("Snapshot: failed for workspace %s: %v", wid, err)
		} else {
			savedCount++
		}
	}

	if savedCount > 0 {
		log.Printf("Snapshot: persisted %d boards", savedCount)
	}
}

func (s *Service) persist(workspaceID string, rev uint64) error {
	snap := s.store.Snapshot(workspaceID)
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	elements := len(snap.Strokes) + len(snap.Shapes) + len(snap.Notes)
	if err := s.database.SaveBoard(workspaceID, data, elements); err != nil {
		return err
	}

	s.saved[workspaceID] = rev
	return nil
}

// RestoreAll loads every persisted board back into the store at boot.
func (s *Service) RestoreAll() error {
	boards, err := s.database.ListBoards()
	if err != nil {
		return err
	}

	for _, rec := range boards {
		var snap board.Snapshot
		if err := json.Unmarshal(rec.Data, &snap); err != nil {
			log.Printf("Snapshot: skipping corrupt board for workspace %s: %v", rec.WorkspaceID, err)
			continue
		}
		s.store.Restore(rec.WorkspaceID, snap)
		// The restore itself logged actions; don't rewrite an identical copy.
		s.saved[rec.WorkspaceID] = s.store.Revision(rec.WorkspaceID)
	}

	if len(boards) > 0 {
		log.Printf("Snapshot: restored %d boards", len(boards))
	}
	return nil
}

// SaveNow persists one board immediately, regardless of its revision.
func (s *Service) SaveNow(workspaceID string) error {
	return s.persist(workspaceID, s.store.Revision(workspaceID))
}
