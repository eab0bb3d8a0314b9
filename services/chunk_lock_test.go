package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// timeNear matches a bound time.Time within a tolerance of want.
type timeNear struct {
	want time.Time
	tol  time.Duration
}

func (m timeNear) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	if !ok {
		return false
	}
	d := t.Sub(m.want)
	if d < 0 {
		d = -d
	}
	return d <= m.tol
}

func draftRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "status", "total_chunks"}).
		AddRow(1, 42, "processing", 3)
}

func chunkRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "draft_id", "chunk_index", "start_page", "end_page", "status", "locked_by"}).
		AddRow(7, 1, 0, 1, 4, status, "worker-a")
}

func TestAcquireChunkSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Draft bookkeeping: status promotion and current chunk marker
	mock.ExpectExec(`UPDATE "drafts" SET "status"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "drafts" SET "current_chunk"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "draft_chunks"`).
		WillReturnRows(chunkRow("processing"))

	chunk, err := m.AcquireChunk(context.Background(), 1, 42, 0, "worker-a")
	if err != nil {
		t.Fatalf("AcquireChunk failed: %v", err)
	}
	if chunk.ID != 7 || chunk.ChunkIndex != 0 {
		t.Errorf("unexpected chunk: %+v", chunk)
	}

	expectationsMet(t, mock)
}

func TestAcquireChunkPredicateArgs(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, 30*time.Second)

	// The WHERE clause must bind the acquirable statuses and a staleness
	// cutoff derived from the configured timeout, so a lock younger than
	// the timeout never matches and an older one always does.
	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WithArgs(
			"",               // error reset
			sqlmock.AnyArg(), // locked_at
			"worker-b",       // locked_by
			"processing",     // status
			sqlmock.AnyArg(), // updated_at
			1, 0,             // draft_id, chunk_index
			1, 42, // ownership subquery
			"pending", "error", // directly acquirable statuses
			"processing", timeNear{want: time.Now().Add(-30 * time.Second), tol: 2 * time.Second},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "drafts" SET "status"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "drafts" SET "current_chunk"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "draft_chunks"`).
		WillReturnRows(chunkRow("processing"))

	if _, err := m.AcquireChunk(context.Background(), 1, 42, 0, "worker-b"); err != nil {
		t.Fatalf("AcquireChunk failed: %v", err)
	}

	expectationsMet(t, mock)
}

func TestAcquireChunkStaleTakeover(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	// A worker died holding this chunk; the aged lock matches the UPDATE
	// and the chunk is handed to the new requester.
	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "drafts" SET "status"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "drafts" SET "current_chunk"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "draft_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "draft_id", "chunk_index", "start_page", "end_page", "status", "locked_by"}).
			AddRow(7, 1, 0, 1, 4, "processing", "worker-b"))

	chunk, err := m.AcquireChunk(context.Background(), 1, 42, 0, "worker-b")
	if err != nil {
		t.Fatalf("AcquireChunk failed: %v", err)
	}
	if chunk.Status != "processing" || chunk.LockedBy != "worker-b" {
		t.Errorf("takeover should reassign the lock, got %+v", chunk)
	}

	expectationsMet(t, mock)
}

func TestAcquireChunkAlreadyDone(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "drafts"`).
		WillReturnRows(draftRow())
	mock.ExpectQuery(`SELECT \* FROM "draft_chunks"`).
		WillReturnRows(chunkRow("done"))

	_, err := m.AcquireChunk(context.Background(), 1, 42, 0, "worker-a")
	if !errors.Is(err, ErrChunkAlreadyDone) {
		t.Errorf("expected ErrChunkAlreadyDone, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestAcquireChunkLockedByLiveWorker(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "drafts"`).
		WillReturnRows(draftRow())
	mock.ExpectQuery(`SELECT \* FROM "draft_chunks"`).
		WillReturnRows(chunkRow("processing"))

	_, err := m.AcquireChunk(context.Background(), 1, 42, 0, "worker-b")
	if !errors.Is(err, ErrChunkLocked) {
		t.Errorf("expected ErrChunkLocked, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestAcquireChunkDraftNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "drafts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := m.AcquireChunk(context.Background(), 99, 42, 0, "worker-a")
	if !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("expected ErrDraftNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestAcquireChunkChunkNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "drafts"`).
		WillReturnRows(draftRow())
	mock.ExpectQuery(`SELECT \* FROM "draft_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := m.AcquireChunk(context.Background(), 1, 42, 8, "worker-a")
	if !errors.Is(err, ErrChunkNotFound) {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestNewChunkLockManagerDefaultTimeout(t *testing.T) {
	db, _ := newMockDB(t)

	m := NewChunkLockManager(db, 0)
	if m.lockTimeout != DefaultLockTimeout {
		t.Errorf("lockTimeout = %v, want %v", m.lockTimeout, DefaultLockTimeout)
	}

	m = NewChunkLockManager(db, 10*time.Second)
	if m.lockTimeout != 10*time.Second {
		t.Errorf("lockTimeout = %v, want 10s", m.lockTimeout)
	}
}

func TestMarkChunkError(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewChunkLockManager(db, DefaultLockTimeout)

	mock.ExpectExec(`UPDATE "draft_chunks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.MarkChunkError(context.Background(), 7, "extraction failed"); err != nil {
		t.Fatalf("MarkChunkError failed: %v", err)
	}

	expectationsMet(t, mock)
}
