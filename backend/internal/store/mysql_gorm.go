package store

import (
	"context"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"replayServer/backend/internal/events"
)

func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ReplaySession 每次启动一条记录。
type ReplaySession struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128"`
	StreamURL string `gorm:"size:255"`
	StartedAt time.Time
}

// ReplayPrint 归档 producer 发来的 print（含与模型的问答）。
type ReplayPrint struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	EventID    string `gorm:"uniqueIndex;size:64"`
	SessionID  string `gorm:"index;size:64"`
	Step       int
	Format     string `gorm:"size:16"`
	Text       string `gorm:"type:mediumtext"`
	OccurredAt time.Time
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ReplaySession{}, &ReplayPrint{})
}

type SessionStore struct{ db *gorm.DB }

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Start(ctx context.Context, id, name, streamURL string, startedAt time.Time) error {
	return s.db.WithContext(ctx).Create(&ReplaySession{
		ID:        id,
		Name:      name,
		StreamURL: streamURL,
		StartedAt: startedAt,
	}).Error
}

type PrintStore struct{ db *gorm.DB }

func NewPrintStore(db *gorm.DB) *PrintStore {
	return &PrintStore{db: db}
}

func (s *PrintStore) Publish(ctx context.Context, evt events.Event) error {
	if evt.EventType != events.TypePrint {
		return nil
	}
	err := s.db.WithContext(ctx).Create(&ReplayPrint{
		EventID:    evt.EventID,
		SessionID:  evt.SessionID,
		Step:       evt.Step,
		Format:     evt.Format,
		Text:       evt.Content,
		OccurredAt: evt.OccurredAt,
	}).Error
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

func (s *PrintStore) ForSession(ctx context.Context, sessionID string) ([]ReplayPrint, error) {
	var out []ReplayPrint
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("step, id").
		Find(&out).Error
	return out, err
}
