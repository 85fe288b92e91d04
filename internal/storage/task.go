package storage

import (
	"database/sql"
	"time"
)

// State is the logical lifecycle state derived from a task's flags.
type State int

const (
	StateActive State = iota
	StateCompleted
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type Task struct {
	ID          int64
	Title       string
	Important   bool
	Completed   bool
	CompletedAt *time.Time
	Deleted     bool
	DeletedAt   *time.Time
	CreatedAt   time.Time
	OrderIndex  int
}

// State reports exactly one of active, completed or deleted. Deletion wins
// over completion so a completed task in the trash is deleted.
func (t Task) State() State {
	switch {
	case t.Deleted:
		return StateDeleted
	case t.Completed:
		return StateCompleted
	default:
		return StateActive
	}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
