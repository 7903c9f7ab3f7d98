//go:build !js && !wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/IntroMatch/pkg/models"
)

const DefaultDBFile = "intromatch.sqlite3"

// DBClient stores patterns in a single sqlite table through gorm.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// PatternRow is the flattened patterns table row.
type PatternRow struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	Name           string `gorm:"index:idx_pattern_name"`
	CreatedAt      time.Time
	ImportedAt     *time.Time
	AlgoVersion    string
	IntroStartS    float64
	IntroEndS      float64
	IntroDurationS float64
	OutroDurationS *float64
	FeatureType    string
	SampleRate     int
	Win            int
	Hop            int
	MelBins        int
	Normalization  string
	PayloadFormat  string
	FrameCount     int
	Dims           int
	DataB64        string `gorm:"type:text"`
	Checksum       string
}

func (PatternRow) TableName() string { return "patterns" }

// NewDBClient opens the database named by INTRO_DB_PATH, or DefaultDBFile.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("INTRO_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// one connection avoids SQLITE_BUSY between concurrent writers
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&PatternRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return ErrClientClosed
	}
	return nil
}

// SavePattern inserts p. Ids are never overwritten.
func (c *DBClient) SavePattern(p *models.Pattern) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := rowFromPattern(p)
	if err := c.DB.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrPatternExists, p.ID)
		}
		return fmt.Errorf("creating pattern: %w", err)
	}
	return nil
}

func (c *DBClient) GetPattern(id string) (*models.Pattern, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row PatternRow
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
		}
		return nil, fmt.Errorf("querying pattern: %w", err)
	}
	return row.toPattern(), nil
}

func (c *DBClient) PatternExists(id string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	var count int64
	if err := c.DB.Model(&PatternRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting pattern: %w", err)
	}
	return count > 0, nil
}

// ListPatterns returns every pattern ordered by name, then id.
func (c *DBClient) ListPatterns() ([]models.Pattern, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []PatternRow
	if err := c.DB.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}
	out := make([]models.Pattern, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toPattern())
	}
	return out, nil
}

func (c *DBClient) DeletePattern(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&PatternRow{})
		if res.Error != nil {
			return fmt.Errorf("deleting pattern: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}

func rowFromPattern(p *models.Pattern) PatternRow {
	return PatternRow{
		ID:             p.ID,
		Name:           p.Name,
		CreatedAt:      p.CreatedAt,
		ImportedAt:     p.ImportedAt,
		AlgoVersion:    p.AlgoVersion,
		IntroStartS:    p.Timing.IntroStartS,
		IntroEndS:      p.Timing.IntroEndS,
		IntroDurationS: p.Timing.IntroDurationS,
		OutroDurationS: p.Timing.OutroDurationS,
		FeatureType:    p.FeatureConfig.FeatureType,
		SampleRate:     p.FeatureConfig.SampleRate,
		Win:            p.FeatureConfig.Win,
		Hop:            p.FeatureConfig.Hop,
		MelBins:        p.FeatureConfig.MelBins,
		Normalization:  p.FeatureConfig.Normalization,
		PayloadFormat:  p.Payload.Format,
		FrameCount:     p.Payload.FrameCount,
		Dims:           p.Payload.Dims,
		DataB64:        p.Payload.DataB64,
		Checksum:       p.Payload.Checksum,
	}
}

func (r *PatternRow) toPattern() *models.Pattern {
	return &models.Pattern{
		ID:          r.ID,
		Name:        r.Name,
		CreatedAt:   r.CreatedAt,
		ImportedAt:  r.ImportedAt,
		AlgoVersion: r.AlgoVersion,
		Timing: models.ReferenceTiming{
			IntroStartS:    r.IntroStartS,
			IntroEndS:      r.IntroEndS,
			IntroDurationS: r.IntroDurationS,
			OutroDurationS: r.OutroDurationS,
		},
		FeatureConfig: models.FeatureConfig{
			FeatureType:   r.FeatureType,
			SampleRate:    r.SampleRate,
			Win:           r.Win,
			Hop:           r.Hop,
			MelBins:       r.MelBins,
			Normalization: r.Normalization,
		},
		Payload: models.FeaturePayload{
			Format:     r.PayloadFormat,
			FrameCount: r.FrameCount,
			Dims:       r.Dims,
			DataB64:    r.DataB64,
			Checksum:   r.Checksum,
		},
	}
}
