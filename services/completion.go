package services

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/model"
)

// CompletionTracker derives draft progress from chunk rows. Counters on
// the draft row are treated as a cache: progress is always recomputed
// from the chunk table, never read back from processed_chunks.
type CompletionTracker struct {
	db *gorm.DB
}

// NewCompletionTracker creates a new completion tracker
func NewCompletionTracker(db *gorm.DB) *CompletionTracker {
	return &CompletionTracker{db: db}
}

// Progress returns the current progress snapshot for a draft.
// A draft is complete once every chunk has been attempted (done or error)
// and at least one question was extracted overall.
func (t *CompletionTracker) Progress(ctx context.Context, draftID uint) (*model.DraftProgress, error) {
	type statusCount struct {
		Status model.ChunkStatus
		Count  int
	}

	var counts []statusCount
	if err := t.db.WithContext(ctx).Model(&model.DraftChunk{}).
		Select("status, count(*) as count").
		Where("draft_id = ?", draftID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count chunk statuses: %w", err)
	}

	progress := &model.DraftProgress{}
	for _, c := range counts {
		progress.Total += c.Count
		switch c.Status {
		case model.ChunkDone:
			progress.Processed += c.Count
		case model.ChunkError:
			progress.Errors += c.Count
		}
	}

	var questionCount int64
	if err := t.db.WithContext(ctx).Model(&model.DraftQuestion{}).
		Where("draft_id = ?", draftID).
		Count(&questionCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	progress.TotalQuestions = int(questionCount)

	allAttempted := progress.Total > 0 && progress.Processed+progress.Errors == progress.Total
	progress.IsComplete = allAttempted && progress.TotalQuestions > 0

	return progress, nil
}

// FinalizeIfComplete recomputes progress and, when the draft is finished,
// promotes its status. Every chunk attempted with at least one question
// extracted means completed; every chunk attempted with zero questions
// means error. The UPDATE is guarded so a completed draft is never
// rewritten and concurrent finalizers are harmless.
func (t *CompletionTracker) FinalizeIfComplete(ctx context.Context, draftID uint) (*model.DraftProgress, error) {
	progress, err := t.Progress(ctx, draftID)
	if err != nil {
		return nil, err
	}

	// Keep the cached counter in step with reality
	if err := t.db.WithContext(ctx).Model(&model.Draft{}).
		Where("id = ? AND status <> ?", draftID, model.DraftCompleted).
		Update("processed_chunks", progress.Processed).Error; err != nil {
		return nil, fmt.Errorf("failed to update processed count: %w", err)
	}

	allAttempted := progress.Total > 0 && progress.Processed+progress.Errors == progress.Total
	if !allAttempted {
		return progress, nil
	}

	finalStatus := model.DraftCompleted
	if progress.TotalQuestions == 0 {
		finalStatus = model.DraftError
	}

	res := t.db.WithContext(ctx).Model(&model.Draft{}).
		Where("id = ? AND status <> ?", draftID, model.DraftCompleted).
		Updates(map[string]interface{}{
			"status":           finalStatus,
			"processed_chunks": progress.Processed,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to finalize draft: %w", res.Error)
	}

	if res.RowsAffected == 1 {
		log.Printf("CompletionTracker: Draft %d finalized as %s (%d/%d chunks, %d questions)",
			draftID, finalStatus, progress.Processed, progress.Total, progress.TotalQuestions)
	}

	return progress, nil
}
