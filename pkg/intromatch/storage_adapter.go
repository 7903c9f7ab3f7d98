package intromatch

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/IntroMatch/internal/storage"
	"github.com/himanishpuri/IntroMatch/pkg/models"
)

// backend is what both storage clients implement.
type backend interface {
	SavePattern(p *models.Pattern) error
	GetPattern(id string) (*models.Pattern, error)
	PatternExists(id string) (bool, error)
	ListPatterns() ([]models.Pattern, error)
	DeletePattern(id string) error
	Close() error
}

// storageAdapter adapts a storage client to the Storage interface, tagging
// errors with the backend name.
type storageAdapter struct {
	db   backend
	kind string
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db, kind: StoreSQLite}, nil
}

// NewBadgerStorage opens a badger directory.
func NewBadgerStorage(dir string) (Storage, error) {
	db, err := storage.NewBadgerClient(dir)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db, kind: StoreBadger}, nil
}

// NewMemoryStorage keeps patterns for the life of the process only.
func NewMemoryStorage() (Storage, error) {
	db, err := storage.NewInMemoryBadgerClient()
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db, kind: StoreMemory}, nil
}

// openStorage builds the backend named in cfg.
func openStorage(cfg *Config) (Storage, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "", StoreSQLite:
		return NewSQLiteStorage(cfg.DBPath)
	case StoreBadger:
		dir := cfg.DBPath
		if dir == "" || strings.HasSuffix(dir, ".sqlite3") {
			dir = storage.DefaultBadgerDir
		}
		return NewBadgerStorage(dir)
	case StoreMemory:
		return NewMemoryStorage()
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (s *storageAdapter) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s: %w", s.kind, op, err)
}

func (s *storageAdapter) SavePattern(p *models.Pattern) error {
	return s.wrap("save", s.db.SavePattern(p))
}

func (s *storageAdapter) GetPattern(id string) (*models.Pattern, error) {
	p, err := s.db.GetPattern(id)
	if err != nil {
		return nil, s.wrap("get", err)
	}
	return p, nil
}

func (s *storageAdapter) PatternExists(id string) (bool, error) {
	ok, err := s.db.PatternExists(id)
	return ok, s.wrap("exists", err)
}

func (s *storageAdapter) ListPatterns() ([]models.Pattern, error) {
	patterns, err := s.db.ListPatterns()
	if err != nil {
		return nil, s.wrap("list", err)
	}
	return patterns, nil
}

func (s *storageAdapter) DeletePattern(id string) error {
	return s.wrap("delete", s.db.DeletePattern(id))
}

func (s *storageAdapter) Close() error {
	return s.wrap("close", s.db.Close())
}
