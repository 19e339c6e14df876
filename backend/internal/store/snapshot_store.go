package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"replayServer/backend/internal/events"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS step_snapshots (
	session_id  VARCHAR(64)  NOT NULL,
	step_index  INT          NOT NULL,
	step        INT          NOT NULL,
	content     MEDIUMTEXT   NOT NULL,
	captured_at DATETIME(3)  NOT NULL,
	PRIMARY KEY (session_id, step_index)
)`

// SnapshotStore 只写归档：每个 step 边界的全文快照。不会被读回 buffer。
type SnapshotStore struct{ db *sql.DB }

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createSnapshotsTable)
	return err
}

func (s *SnapshotStore) SaveStepSnapshot(ctx context.Context, sessionID string, index, step int, content string, capturedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_snapshots (session_id, step_index, step, content, captured_at)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID,
		index,
		step,
		content,
		capturedAt,
	)
	if err != nil {
		// 重试导致的重复写入视为成功
		if isDuplicateKey(err) {
			return nil
		}
		return err
	}
	return nil
}

// Publish 让 SnapshotStore 直接作为 events.Sink 挂到事件 dispatcher 上。
func (s *SnapshotStore) Publish(ctx context.Context, evt events.Event) error {
	if evt.EventType != events.TypeStepCaptured {
		return nil
	}
	return s.SaveStepSnapshot(ctx, evt.SessionID, evt.Index, evt.Step, evt.Content, evt.OccurredAt)
}

func (s *SnapshotStore) CountSteps(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM step_snapshots WHERE session_id = ?`,
		sessionID,
	).Scan(&n)
	return n, err
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
