//go:build !js && !wasm

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"github.com/himanishpuri/IntroMatch/pkg/models"
)

const (
	DefaultBadgerDir = "intromatch.badger"
	patternPrefix    = "pattern/"
)

// BadgerClient keeps one JSON document per pattern under pattern/<id>.
type BadgerClient struct {
	db *badger.DB
}

func NewBadgerClient(dir string) (*BadgerClient, error) {
	if dir == "" {
		dir = DefaultBadgerDir
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	return &BadgerClient{db: db}, nil
}

// NewInMemoryBadgerClient is a throwaway store, handy for tests and one-off runs.
func NewInMemoryBadgerClient() (*BadgerClient, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger db: %w", err)
	}
	return &BadgerClient{db: db}, nil
}

func (c *BadgerClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *BadgerClient) ready() error {
	if c == nil || c.db == nil {
		return ErrClientClosed
	}
	return nil
}

func patternKey(id string) []byte {
	return []byte(patternPrefix + id)
}

func (c *BadgerClient) SavePattern(p *models.Pattern) error {
	if err := c.ready(); err != nil {
		return err
	}
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding pattern: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		key := patternKey(p.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrPatternExists, p.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
}

func (c *BadgerClient) GetPattern(id string) (*models.Pattern, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var p models.Pattern
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(patternKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *BadgerClient) PatternExists(id string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(patternKey(id))
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return found, err
}

// ListPatterns returns every pattern ordered by name, then id.
func (c *BadgerClient) ListPatterns() ([]models.Pattern, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var out []models.Pattern
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(patternPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p models.Pattern
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *BadgerClient) DeletePattern(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		key := patternKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
			}
			return err
		}
		return txn.Delete(key)
	})
}
