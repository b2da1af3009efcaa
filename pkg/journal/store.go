// Package journal keeps an audit trail of mutating distribution commands in
// a SQL database.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database named by cfg.
func Open(cfg Config) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("journal: no DSN configured")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// Store provides database operations for journal entries.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// AutoMigrate creates or updates the releases table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Release{})
}

// ListFilter defines filters for listing entries.
type ListFilter struct {
	DistributionID string
	Operation      Operation
	Outcome        Outcome
	Limit          int
}

// Record stores entry, assigning an ID and creation time when unset.
func (s *Store) Record(ctx context.Context, entry *Release) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first. Limit defaults to 20
// and is capped at 500.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Release, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}

	q := s.db.WithContext(ctx).Model(&Release{})
	if filter.DistributionID != "" {
		q = q.Where("distribution_id = ?", filter.DistributionID)
	}
	if filter.Operation != "" {
		q = q.Where("operation = ?", filter.Operation)
	}
	if filter.Outcome != "" {
		q = q.Where("outcome = ?", filter.Outcome)
	}

	var entries []Release
	if err := q.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan deletes entries created before cutoff and returns how many
// were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&Release{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old journal entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
