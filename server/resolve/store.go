package resolve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/tkrehbiel/activitysift/server/telemetry"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotOpen = errors.New("store has not been opened")

// Store is a persistent memo of resolved redirects
type Store interface {
	Lookup(ctx context.Context, url string) (final string, ok bool, err error)
	Save(ctx context.Context, url string, final string) error
}

// SQLiteStore is a Store backed by a sqlite database
type SQLiteStore struct {
	connection string
	maxAge     time.Duration // zero keeps entries forever
	db         *gorm.DB
	sqldb      *sql.DB
}

// redirect is the gorm model for a database row
type redirect struct {
	ID         uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SourceURL  string `gorm:"index;unique"`
	FinalURL   string
	ResolvedAt time.Time
}

func NewSQLiteStore(connection string, maxAge time.Duration) *SQLiteStore {
	return &SQLiteStore{
		connection: connection,
		maxAge:     maxAge,
	}
}

func (s *SQLiteStore) Open() error {
	if s.db != nil {
		s.Close()
	}
	newLogger := logger.New(
		gormWriter{}, // route gorm complaints through telemetry
		logger.Config{
			SlowThreshold:             time.Second,  // Slow SQL threshold
			LogLevel:                  logger.Error, // Log level
			IgnoreRecordNotFoundError: true,         // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,        // Disable color
		},
	)
	db, err := gorm.Open(sqlite.Open(s.connection), &gorm.Config{
		Logger: newLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.connection, err)
	}
	sqldb, err := db.DB()
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.connection, err)
	}
	// create tables
	if err := db.Migrator().AutoMigrate(&redirect{}); err != nil {
		sqldb.Close()
		return fmt.Errorf("migrating %s: %w", s.connection, err)
	}
	s.db = db
	s.sqldb = sqldb
	return nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.sqldb.Close()
		s.sqldb = nil
		s.db = nil
	}
}

func (s *SQLiteStore) Lookup(ctx context.Context, url string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNotOpen
	}
	var row redirect
	tx := s.db.WithContext(ctx).Where(&redirect{SourceURL: url}).First(&row)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return "", false, nil
	} else if tx.Error != nil {
		return "", false, fmt.Errorf("finding redirect %s: %w", url, tx.Error)
	}
	if s.maxAge > 0 && time.Since(row.ResolvedAt) > s.maxAge {
		return "", false, nil
	}
	return row.FinalURL, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, url string, final string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	now := time.Now().UTC()
	var row redirect
	tx := s.db.WithContext(ctx).Where(&redirect{SourceURL: url}).First(&row)
	if tx.Error == nil {
		// found, update the row
		row.FinalURL = final
		row.ResolvedAt = now
		if tx := s.db.WithContext(ctx).Save(&row); tx.Error != nil {
			return fmt.Errorf("updating redirect %s: %w", url, tx.Error)
		}
		return nil
	} else if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		// not found, insert a new row
		tx := s.db.WithContext(ctx).Create(&redirect{
			SourceURL:  url,
			FinalURL:   final,
			ResolvedAt: now,
		})
		if tx.Error != nil {
			return fmt.Errorf("creating redirect %s: %w", url, tx.Error)
		}
		return nil
	}
	// database error
	return fmt.Errorf("finding redirect %s: %w", url, tx.Error)
}

// Count returns the number of remembered redirects
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	var n int64
	tx := s.db.WithContext(ctx).Model(&redirect{}).Count(&n)
	return n, tx.Error
}

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	telemetry.Log(format, args...)
}
