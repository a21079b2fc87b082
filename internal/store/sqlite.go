package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

// SessionRecord persists the latest session snapshot as JSON per code.
type SessionRecord struct {
	Code             string `gorm:"column:code;primaryKey;size:16;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SessionRecord) TableName() string {
	return "collab_sessions"
}

// CanvasRecord persists the latest canvas snapshot as JSON per code.
type CanvasRecord struct {
	Code             string `gorm:"column:code;primaryKey;size:16;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CanvasRecord) TableName() string {
	return "collab_canvases"
}

// SQLiteStore keeps snapshots in SQLite so a relay restart does not lose
// live sessions.
type SQLiteStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewSQLiteStore wraps an opened database handle.
func NewSQLiteStore(db *gorm.DB, clock func() time.Time) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: database handle is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &SQLiteStore{db: db, clock: clock}, nil
}

// GetSession returns the stored session, or (nil, nil) when the code is
// unknown.
func (s *SQLiteStore) GetSession(ctx context.Context, code string) (*collab.Session, error) {
	var record SessionRecord
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session collab.Session
	if err := json.Unmarshal([]byte(record.PayloadJSON), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// PutSession upserts the snapshot keyed by the session's code.
func (s *SQLiteStore) PutSession(ctx context.Context, session *collab.Session) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}
	record := SessionRecord{
		Code:             session.Code,
		PayloadJSON:      string(encoded),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
}

// DeleteSession removes the session and its canvas snapshot.
func (s *SQLiteStore) DeleteSession(ctx context.Context, code string) error {
	if err := s.db.WithContext(ctx).Delete(&SessionRecord{}, "code = ?", code).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&CanvasRecord{}, "code = ?", code).Error
}

// GetCanvas returns the stored canvas, or (nil, nil) when absent.
func (s *SQLiteStore) GetCanvas(ctx context.Context, code string) (*collab.CanvasState, error) {
	var record CanvasRecord
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state collab.CanvasState
	if err := json.Unmarshal([]byte(record.PayloadJSON), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// PutCanvas upserts the canvas snapshot for the code.
func (s *SQLiteStore) PutCanvas(ctx context.Context, code string, state *collab.CanvasState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return err
	}
	record := CanvasRecord{
		Code:             code,
		PayloadJSON:      string(encoded),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
}
