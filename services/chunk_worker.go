package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/model"
	"github.com/quizforge/quizforge-api/services/spaces"
)

var (
	// ErrPDFMissing means the draft row exists but has no stored PDF key.
	ErrPDFMissing = errors.New("draft has no stored PDF")

	// ErrStorageFetch wraps object storage failures while fetching the PDF.
	ErrStorageFetch = errors.New("failed to fetch PDF from storage")
)

// chunkStorage is the slice of object storage the worker needs.
type chunkStorage interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

// questionSource turns chunk text into candidate questions.
type questionSource interface {
	ExtractQuestions(ctx context.Context, draftID uint, text string, pageRange PageRange) ([]*model.DraftQuestion, error)
}

// ChunkWorker processes one chunk of a draft end to end: lock, fetch,
// carve, extract, deduplicate, commit.
//
// Failures split two ways. Infrastructure faults (missing PDF, storage
// down) return an error and leave the chunk locked; the stale-lock
// timeout recovers it and the caller sees a server error. Processing
// failures (unreadable pages, LLM refusal, bad JSON) mark the chunk
// error and return a normal result, so the client can retry that chunk
// immediately.
type ChunkWorker struct {
	db           *gorm.DB
	locks        *ChunkLockManager
	tracker      *CompletionTracker
	dedup        *QuestionDeduplicator
	extractor    questionSource
	pdfExtractor *PDFExtractor
	carver       *PDFCarver
	storage      chunkStorage
}

// NewChunkWorker creates a new chunk worker
func NewChunkWorker(
	db *gorm.DB,
	locks *ChunkLockManager,
	tracker *CompletionTracker,
	extractor *QuestionExtractor,
	storage *spaces.Client,
) *ChunkWorker {
	return &ChunkWorker{
		db:           db,
		locks:        locks,
		tracker:      tracker,
		dedup:        NewQuestionDeduplicator(),
		extractor:    extractor,
		pdfExtractor: NewPDFExtractor(),
		carver:       NewPDFCarver(),
		storage:      storage,
	}
}

// ChunkProcessResult reports the outcome of one ProcessChunk call.
type ChunkProcessResult struct {
	ChunkIndex       int                 `json:"chunk_index"`
	QuestionsAdded   int                 `json:"questions_added"`
	AlreadyProcessed bool                `json:"already_processed,omitempty"`
	Failed           bool                `json:"failed,omitempty"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	Progress         model.DraftProgress `json:"progress"`
}

// ProcessChunk locks and processes chunk chunkIndex of the given draft.
//
// A chunk already processed by an earlier call returns a successful
// result with AlreadyProcessed set; lock contention and lookup failures
// surface as the lock manager's sentinel errors.
func (w *ChunkWorker) ProcessChunk(ctx context.Context, draftID, userID uint, chunkIndex int) (*ChunkProcessResult, error) {
	requesterID := uuid.NewString()

	chunk, err := w.locks.AcquireChunk(ctx, draftID, userID, chunkIndex, requesterID)
	if err != nil {
		if errors.Is(err, ErrChunkAlreadyDone) {
			progress, perr := w.tracker.Progress(ctx, draftID)
			if perr != nil {
				return nil, perr
			}
			return &ChunkProcessResult{
				ChunkIndex:       chunkIndex,
				AlreadyProcessed: true,
				Progress:         *progress,
			}, nil
		}
		return nil, err
	}

	log.Printf("ChunkWorker: Acquired chunk %d of draft %d (pages %d-%d, requester %s)",
		chunkIndex, draftID, chunk.StartPage, chunk.EndPage, requesterID)

	// Cancelled before any work: abandon the lock, stale takeover recovers it
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var draft model.Draft
	if err := w.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", draftID, userID).
		First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	if draft.PDFKey == "" {
		return nil, ErrPDFMissing
	}

	pdfContent, err := w.storage.DownloadFile(ctx, draft.PDFKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFetch, err)
	}

	// Cancelled mid-flight: record the failure so the client can retry the chunk
	if ctx.Err() != nil {
		return w.softFail(ctx, draftID, chunk, "processing cancelled")
	}

	// The draft may have been deleted while the PDF was in transit
	var draftCount int64
	if err := w.db.WithContext(ctx).Model(&model.Draft{}).
		Where("id = ?", draftID).Count(&draftCount).Error; err != nil || draftCount == 0 {
		return w.softFail(ctx, draftID, chunk, "draft deleted during processing")
	}

	text, err := w.chunkText(pdfContent, chunk)
	if err != nil {
		return w.softFail(ctx, draftID, chunk, err.Error())
	}

	questions, err := w.extractor.ExtractQuestions(ctx, draftID,
		text, PageRange{Start: chunk.StartPage, End: chunk.EndPage})
	if err != nil {
		return w.softFail(ctx, draftID, chunk, err.Error())
	}

	var existing []model.DraftQuestion
	if err := w.db.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Find(&existing).Error; err != nil {
		return w.softFail(ctx, draftID, chunk, fmt.Sprintf("failed to load existing questions: %v", err))
	}

	kept := w.dedup.FilterNew(existing, questions)

	if err := w.commitChunk(ctx, draftID, chunk, kept); err != nil {
		return w.softFail(ctx, draftID, chunk, fmt.Sprintf("failed to commit chunk results: %v", err))
	}

	progress, err := w.tracker.FinalizeIfComplete(ctx, draftID)
	if err != nil {
		return nil, err
	}

	log.Printf("ChunkWorker: Chunk %d of draft %d done - %d questions added (%d extracted, %d duplicates)",
		chunkIndex, draftID, len(kept), len(questions), len(questions)-len(kept))

	return &ChunkProcessResult{
		ChunkIndex:     chunkIndex,
		QuestionsAdded: len(kept),
		Progress:       *progress,
	}, nil
}

// chunkText carves the chunk's page range into a standalone PDF and
// extracts its text, falling back to range extraction on the full
// document when carving fails.
func (w *ChunkWorker) chunkText(pdfContent []byte, chunk *model.DraftChunk) (string, error) {
	carved, err := w.carver.CarvePageRange(pdfContent, chunk.StartPage, chunk.EndPage)
	if err == nil {
		text, terr := w.pdfExtractor.ExtractText(carved)
		if terr == nil {
			return text, nil
		}
		log.Printf("ChunkWorker: Text extraction from carved chunk failed, falling back to range extraction: %v", terr)
	} else {
		log.Printf("ChunkWorker: Carving pages %d-%d failed, falling back to range extraction: %v",
			chunk.StartPage, chunk.EndPage, err)
	}

	text, err := w.pdfExtractor.ExtractPageRange(pdfContent, chunk.StartPage, chunk.EndPage)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from pages %d-%d: %w", chunk.StartPage, chunk.EndPage, err)
	}
	return text, nil
}

// commitChunk atomically persists the chunk's questions, promotes the
// chunk to done, and refreshes the draft's processed counter from the
// chunk table. Done chunks are never demoted, so replays are no-ops.
func (w *ChunkWorker) commitChunk(ctx context.Context, draftID uint, chunk *model.DraftChunk, questions []*model.DraftQuestion) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}

		res := tx.Model(&model.DraftChunk{}).
			Where("id = ? AND status <> ?", chunk.ID, model.ChunkDone).
			Updates(map[string]interface{}{
				"status":    model.ChunkDone,
				"locked_at": nil,
				"locked_by": "",
				"error":     "",
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark chunk done: %w", res.Error)
		}

		var doneCount int64
		if err := tx.Model(&model.DraftChunk{}).
			Where("draft_id = ? AND status = ?", draftID, model.ChunkDone).
			Count(&doneCount).Error; err != nil {
			return fmt.Errorf("failed to count done chunks: %w", err)
		}

		return tx.Model(&model.Draft{}).
			Where("id = ?", draftID).
			Update("processed_chunks", doneCount).Error
	})
}

// softFail marks the chunk as errored and returns a failed-but-handled
// result. DB writes run on a cancellation-detached context so an aborted
// request still records its failure.
func (w *ChunkWorker) softFail(ctx context.Context, draftID uint, chunk *model.DraftChunk, message string) (*ChunkProcessResult, error) {
	detached := context.WithoutCancel(ctx)

	log.Printf("ChunkWorker: Chunk %d of draft %d failed: %s", chunk.ChunkIndex, draftID, message)

	if err := w.locks.MarkChunkError(detached, chunk.ID, message); err != nil {
		log.Printf("ChunkWorker: Failed to record chunk error: %v", err)
	}

	progress, err := w.tracker.FinalizeIfComplete(detached, draftID)
	if err != nil {
		log.Printf("ChunkWorker: Failed to refresh progress after chunk error: %v", err)
		progress = &model.DraftProgress{}
	}

	return &ChunkProcessResult{
		ChunkIndex:   chunk.ChunkIndex,
		Failed:       true,
		ErrorMessage: message,
		Progress:     *progress,
	}, nil
}
