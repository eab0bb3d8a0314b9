package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/model"
)

const (
	// DefaultLockTimeout is how long a processing lock is honored before
	// another worker may take the chunk over. Must comfortably exceed the
	// worst-case extraction time for one chunk.
	DefaultLockTimeout = 60 * time.Second

	// LockRetryAfter is the suggested client wait before re-requesting a
	// chunk that is locked by a live worker.
	LockRetryAfter = 5 * time.Second
)

var (
	ErrDraftNotFound    = errors.New("draft not found")
	ErrChunkNotFound    = errors.New("chunk not found")
	ErrChunkAlreadyDone = errors.New("chunk already processed")
	ErrChunkLocked      = errors.New("chunk is being processed by another request")
)

// ChunkLockManager hands out exclusive processing locks on draft chunks.
//
// A lock is a conditional UPDATE on the chunk row: the WHERE clause encodes
// every state in which taking the chunk is legal, so concurrent acquirers
// race on the database and exactly one sees RowsAffected == 1. There is no
// separate lock table and no advisory locking.
//
// Lock staleness is judged by locked_at age alone. A worker that dies
// mid-chunk leaves the row in processing; after DefaultLockTimeout any
// acquirer may take it over.
type ChunkLockManager struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewChunkLockManager creates a lock manager. A non-positive lockTimeout
// falls back to DefaultLockTimeout.
func NewChunkLockManager(db *gorm.DB, lockTimeout time.Duration) *ChunkLockManager {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &ChunkLockManager{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

// AcquireChunk attempts to take the processing lock on one chunk of a draft
// owned by userID. requesterID is recorded in locked_by for observability.
//
// The chunk is acquirable when pending, errored (retry), or processing with
// a lock older than the timeout (stale takeover). On success the returned
// chunk is in processing state with a fresh lock.
//
// Failure modes map to sentinel errors: ErrDraftNotFound (no such draft for
// this user, or soft-deleted), ErrChunkNotFound, ErrChunkAlreadyDone, and
// ErrChunkLocked (fresh lock held elsewhere; retry after LockRetryAfter).
func (m *ChunkLockManager) AcquireChunk(ctx context.Context, draftID, userID uint, chunkIndex int, requesterID string) (*model.DraftChunk, error) {
	now := time.Now()
	staleBefore := now.Add(-m.lockTimeout)

	ownedDraft := m.db.Model(&model.Draft{}).
		Select("id").
		Where("id = ? AND user_id = ?", draftID, userID)

	res := m.db.WithContext(ctx).Model(&model.DraftChunk{}).
		Where("draft_id = ? AND chunk_index = ?", draftID, chunkIndex).
		Where("draft_id IN (?)", ownedDraft).
		Where("(status IN ? OR (status = ? AND locked_at < ?))",
			[]model.ChunkStatus{model.ChunkPending, model.ChunkError},
			model.ChunkProcessing, staleBefore).
		Updates(map[string]interface{}{
			"status":    model.ChunkProcessing,
			"locked_at": now,
			"locked_by": requesterID,
			"error":     "",
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to acquire chunk lock: %w", res.Error)
	}

	if res.RowsAffected == 1 {
		// Draft bookkeeping is informational, failures here don't void the lock
		if err := m.db.WithContext(ctx).Model(&model.Draft{}).
			Where("id = ? AND status = ?", draftID, model.DraftPending).
			Update("status", model.DraftProcessing).Error; err == nil {
			m.db.WithContext(ctx).Model(&model.Draft{}).
				Where("id = ?", draftID).
				Update("current_chunk", chunkIndex)
		}

		var chunk model.DraftChunk
		if err := m.db.WithContext(ctx).
			Where("draft_id = ? AND chunk_index = ?", draftID, chunkIndex).
			First(&chunk).Error; err != nil {
			return nil, fmt.Errorf("failed to load acquired chunk: %w", err)
		}
		return &chunk, nil
	}

	// No row updated. Re-read state to report why.
	var draft model.Draft
	if err := m.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", draftID, userID).
		First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	var chunk model.DraftChunk
	if err := m.db.WithContext(ctx).
		Where("draft_id = ? AND chunk_index = ?", draftID, chunkIndex).
		First(&chunk).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("failed to load chunk: %w", err)
	}

	if chunk.Status == model.ChunkDone {
		return nil, ErrChunkAlreadyDone
	}

	return nil, ErrChunkLocked
}

// MarkChunkError records a processing failure on a chunk and releases the
// lock into error state, making the chunk immediately retryable.
// Done chunks are never demoted.
func (m *ChunkLockManager) MarkChunkError(ctx context.Context, chunkID uint, message string) error {
	res := m.db.WithContext(ctx).Model(&model.DraftChunk{}).
		Where("id = ? AND status <> ?", chunkID, model.ChunkDone).
		Updates(map[string]interface{}{
			"status":    model.ChunkError,
			"locked_at": nil,
			"locked_by": "",
			"error":     message,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark chunk error: %w", res.Error)
	}
	return nil
}
