package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/model"
	"github.com/quizforge/quizforge-api/services/spaces"
)

const (
	// DefaultDraftTTL is how long an unpublished draft and its stored PDF
	// are kept before the cleanup job removes them.
	DefaultDraftTTL = 24 * time.Hour
)

var (
	// ErrDraftNotReady means the draft has unprocessed chunks and cannot
	// be published yet.
	ErrDraftNotReady = errors.New("draft is not ready to publish")

	// ErrNoQuestions means extraction finished but produced nothing usable.
	ErrNoQuestions = errors.New("draft has no questions")

	// ErrInvalidPDF means the uploaded file could not be parsed as a PDF.
	ErrInvalidPDF = errors.New("invalid PDF file")
)

// DraftService manages the draft lifecycle: creation from an uploaded
// PDF, retrieval, publication into a quiz, and expiry cleanup.
type DraftService struct {
	db            *gorm.DB
	storage       *spaces.Client
	pdfExtractor  *PDFExtractor
	pagesPerChunk int
	draftTTL      time.Duration
}

// DraftServiceConfig holds configuration for the draft service
type DraftServiceConfig struct {
	PagesPerChunk int
	DraftTTL      time.Duration
}

// NewDraftService creates a new draft service. Zero config values fall
// back to defaults.
func NewDraftService(db *gorm.DB, storage *spaces.Client, config DraftServiceConfig) *DraftService {
	if config.PagesPerChunk <= 0 {
		config.PagesPerChunk = DefaultPagesPerChunk
	}
	if config.DraftTTL <= 0 {
		config.DraftTTL = DefaultDraftTTL
	}

	return &DraftService{
		db:            db,
		storage:       storage,
		pdfExtractor:  NewPDFExtractor(),
		pagesPerChunk: config.PagesPerChunk,
		draftTTL:      config.DraftTTL,
	}
}

// CreateDraftFromPDF validates and stores an uploaded PDF, then creates
// the draft with one pending chunk row per page range. No extraction
// happens here; clients drive processing chunk by chunk afterwards.
func (s *DraftService) CreateDraftFromPDF(ctx context.Context, userID uint, title, filename string, content []byte) (*model.Draft, error) {
	pageCount, err := s.pdfExtractor.GetPageCount(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidPDF)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	key := spaces.GenerateKey("drafts", filename)
	if err := s.storage.UploadBytes(ctx, key, content, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store PDF: %w", err)
	}

	ranges := ComputeChunkRanges(pageCount, s.pagesPerChunk)

	draft := &model.Draft{
		UserID:         userID,
		Title:          title,
		SourceFilename: filepath.Base(filename),
		PDFKey:         key,
		Status:         model.DraftPending,
		TotalChunks:    len(ranges),
		ExpiresAt:      time.Now().Add(s.draftTTL),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(draft).Error; err != nil {
			return fmt.Errorf("failed to create draft: %w", err)
		}

		chunks := make([]model.DraftChunk, 0, len(ranges))
		for i, r := range ranges {
			chunks = append(chunks, model.DraftChunk{
				DraftID:    draft.ID,
				ChunkIndex: i,
				StartPage:  r.Start,
				EndPage:    r.End,
				Status:     model.ChunkPending,
			})
		}

		if err := tx.Create(&chunks).Error; err != nil {
			return fmt.Errorf("failed to create chunks: %w", err)
		}

		draft.Chunks = chunks
		return nil
	})
	if err != nil {
		// The orphaned object is also covered by the expiry sweep
		if derr := s.storage.DeleteFile(context.WithoutCancel(ctx), key); derr != nil {
			log.Printf("DraftService: Failed to remove orphaned PDF %s: %v", key, derr)
		}
		return nil, err
	}

	log.Printf("DraftService: Created draft %d for user %d (%d pages, %d chunks)",
		draft.ID, userID, pageCount, len(ranges))

	return draft, nil
}

// GetDraft returns a draft owned by userID with its chunks and questions
func (s *DraftService) GetDraft(ctx context.Context, draftID, userID uint) (*model.Draft, error) {
	var draft model.Draft
	err := s.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB {
			return db.Order("chunk_index ASC")
		}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ? AND user_id = ?", draftID, userID).
		First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	return &draft, nil
}

// ListDrafts returns all drafts owned by userID, newest first
func (s *DraftService) ListDrafts(ctx context.Context, userID uint) ([]model.Draft, error) {
	var drafts []model.Draft
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&drafts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	return drafts, nil
}

// DeleteDraft soft-deletes a draft and removes its stored PDF
func (s *DraftService) DeleteDraft(ctx context.Context, draftID, userID uint) error {
	draft, err := s.GetDraft(ctx, draftID, userID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&model.Draft{}, draft.ID).Error; err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	if draft.PDFKey != "" {
		if err := s.storage.DeleteFile(ctx, draft.PDFKey); err != nil {
			log.Printf("DraftService: Failed to delete PDF %s for draft %d: %v", draft.PDFKey, draft.ID, err)
		}
	}

	return nil
}

// PublishDraft turns a completed draft into a quiz. Questions are copied
// so the quiz survives draft cleanup, then the draft is deleted.
func (s *DraftService) PublishDraft(ctx context.Context, draftID, userID uint, title string) (*model.Quiz, error) {
	draft, err := s.GetDraft(ctx, draftID, userID)
	if err != nil {
		return nil, err
	}

	if draft.Status != model.DraftCompleted {
		return nil, ErrDraftNotReady
	}
	if len(draft.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	if title == "" {
		title = draft.Title
	}

	quiz := &model.Quiz{
		UserID:         userID,
		Title:          title,
		TotalQuestions: len(draft.Questions),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quiz).Error; err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}

		questions := make([]model.QuizQuestion, 0, len(draft.Questions))
		for i, q := range draft.Questions {
			questions = append(questions, model.QuizQuestion{
				QuizID:         quiz.ID,
				Position:       i,
				Text:           q.Text,
				Type:           q.Type,
				Options:        q.Options,
				CorrectIndex:   q.CorrectIndex,
				CorrectIndices: q.CorrectIndices,
				ImageURLs:      q.ImageURLs,
			})
		}

		if err := tx.Create(&questions).Error; err != nil {
			return fmt.Errorf("failed to create quiz questions: %w", err)
		}

		if err := tx.Delete(&model.Draft{}, draft.ID).Error; err != nil {
			return fmt.Errorf("failed to delete published draft: %w", err)
		}

		quiz.Questions = questions
		return nil
	})
	if err != nil {
		return nil, err
	}

	if draft.PDFKey != "" {
		if err := s.storage.DeleteFile(ctx, draft.PDFKey); err != nil {
			log.Printf("DraftService: Failed to delete PDF %s for published draft %d: %v", draft.PDFKey, draft.ID, err)
		}
	}

	log.Printf("DraftService: Published draft %d as quiz %d (%d questions)", draft.ID, quiz.ID, quiz.TotalQuestions)

	return quiz, nil
}

// CleanupExpired soft-deletes drafts past their TTL and removes their
// stored PDFs. Returns the number of drafts removed.
func (s *DraftService) CleanupExpired(ctx context.Context) (int, error) {
	var expired []model.Draft
	err := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find expired drafts: %w", err)
	}

	removed := 0
	for _, draft := range expired {
		if err := s.db.WithContext(ctx).Delete(&model.Draft{}, draft.ID).Error; err != nil {
			log.Printf("DraftService: Failed to delete expired draft %d: %v", draft.ID, err)
			continue
		}

		if draft.PDFKey != "" {
			if err := s.storage.DeleteFile(ctx, draft.PDFKey); err != nil {
				log.Printf("DraftService: Failed to delete PDF %s for expired draft %d: %v", draft.PDFKey, draft.ID, err)
			}
		}
		removed++
	}

	return removed, nil
}
