package draft

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/model"
	"github.com/quizforge/quizforge-api/services"
	"github.com/quizforge/quizforge-api/utils/cache"
	"github.com/quizforge/quizforge-api/utils/middleware"
	"github.com/quizforge/quizforge-api/utils/response"
	"github.com/quizforge/quizforge-api/utils/validation"
)

const (
	// maxUploadSize caps PDF uploads at 50 MB
	maxUploadSize = 50 * 1024 * 1024

	// progressCacheTTL is how long a progress snapshot is served from
	// Redis before polling clients hit the database again
	progressCacheTTL = 3 * time.Second
)

// DraftHandler handles draft-related requests
type DraftHandler struct {
	db           *gorm.DB
	draftService *services.DraftService
	worker       *services.ChunkWorker
	tracker      *services.CompletionTracker
	cache        *cache.RedisCache
	validator    *validation.Validator
}

// NewDraftHandler creates a new draft handler. cache may be nil, in
// which case progress snapshots are always computed fresh.
func NewDraftHandler(
	db *gorm.DB,
	draftService *services.DraftService,
	worker *services.ChunkWorker,
	tracker *services.CompletionTracker,
	redisCache *cache.RedisCache,
) *DraftHandler {
	return &DraftHandler{
		db:           db,
		draftService: draftService,
		worker:       worker,
		tracker:      tracker,
		cache:        redisCache,
		validator:    validation.NewValidator(),
	}
}

// CreateDraft handles POST /api/v1/drafts
// Accepts a multipart PDF upload and creates a draft with pending chunks.
func (h *DraftHandler) CreateDraft(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "Missing PDF file upload")
	}

	if fileHeader.Size > maxUploadSize {
		return response.BadRequest(c, "File too large (max 50 MB)")
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return response.BadRequest(c, "Only PDF files are accepted")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}

	title := validation.SanitizeString(c.FormValue("title"))

	draft, err := h.draftService.CreateDraftFromPDF(c.Context(), userID, title, fileHeader.Filename, content)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPDF) {
			return response.BadRequest(c, "Uploaded file is not a readable PDF")
		}
		return response.InternalServerError(c, "Failed to create draft")
	}

	return response.Created(c, draft.ToResponse())
}

// ListDrafts handles GET /api/v1/drafts
func (h *DraftHandler) ListDrafts(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	drafts, err := h.draftService.ListDrafts(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch drafts")
	}

	summaries := make([]model.DraftSummary, len(drafts))
	for i, d := range drafts {
		summaries[i] = d.ToSummary()
	}

	return response.Success(c, model.DraftsListResponse{
		Drafts: summaries,
		Total:  len(summaries),
	})
}

// GetDraft handles GET /api/v1/drafts/:id
func (h *DraftHandler) GetDraft(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	draftID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid draft ID")
	}

	draft, err := h.draftService.GetDraft(c.Context(), draftID, userID)
	if err != nil {
		if errors.Is(err, services.ErrDraftNotFound) {
			return response.NotFound(c, "Draft not found")
		}
		return response.InternalServerError(c, "Failed to fetch draft")
	}

	return response.Success(c, draft.ToResponse())
}

// DeleteDraft handles DELETE /api/v1/drafts/:id
func (h *DraftHandler) DeleteDraft(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	draftID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid draft ID")
	}

	if err := h.draftService.DeleteDraft(c.Context(), draftID, userID); err != nil {
		if errors.Is(err, services.ErrDraftNotFound) {
			return response.NotFound(c, "Draft not found")
		}
		return response.InternalServerError(c, "Failed to delete draft")
	}

	h.invalidateProgress(c, draftID)

	return response.NoContent(c)
}

// processChunkRequest is the body of POST /drafts/:id/process-chunk
type processChunkRequest struct {
	ChunkIndex int `json:"chunk_index" validate:"gte=0"`
}

// ProcessChunk handles POST /api/v1/drafts/:id/process-chunk
// Locks and processes one chunk. A chunk held by another in-flight
// request returns 409 with a Retry-After header.
func (h *DraftHandler) ProcessChunk(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	draftID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid draft ID")
	}

	var req processChunkRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.worker.ProcessChunk(c.Context(), draftID, userID, req.ChunkIndex)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDraftNotFound):
			return response.NotFound(c, "Draft not found")
		case errors.Is(err, services.ErrChunkNotFound):
			return response.NotFound(c, "Chunk not found")
		case errors.Is(err, services.ErrChunkLocked):
			c.Set("Retry-After", strconv.Itoa(int(services.LockRetryAfter.Seconds())))
			return response.Conflict(c, "Chunk is being processed by another request")
		case errors.Is(err, services.ErrPDFMissing):
			return response.InternalServerError(c, "Draft PDF is missing")
		case errors.Is(err, services.ErrStorageFetch):
			return response.ServiceUnavailable(c, "Failed to fetch PDF from storage")
		default:
			return response.InternalServerError(c, "Failed to process chunk")
		}
	}

	h.invalidateProgress(c, draftID)

	if result.AlreadyProcessed {
		return response.SuccessWithMessage(c, "Chunk already processed", result)
	}
	return response.Success(c, result)
}

// GetProgress handles GET /api/v1/drafts/:id/progress
// Progress snapshots are cached briefly to absorb client polling.
func (h *DraftHandler) GetProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	draftID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid draft ID")
	}

	cacheKey := fmt.Sprintf("draft:%d:progress:%d", draftID, userID)
	if h.cache != nil {
		var cached model.DraftProgress
		if err := h.cache.GetJSON(c.Context(), cacheKey, &cached); err == nil {
			return response.Success(c, cached)
		}
	}

	// Ownership check before exposing progress
	var count int64
	if err := h.db.WithContext(c.Context()).Model(&model.Draft{}).
		Where("id = ? AND user_id = ?", draftID, userID).
		Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch draft")
	}
	if count == 0 {
		return response.NotFound(c, "Draft not found")
	}

	progress, err := h.tracker.Progress(c.Context(), draftID)
	if err != nil {
		return response.InternalServerError(c, "Failed to compute progress")
	}

	if h.cache != nil {
		_ = h.cache.SetJSON(c.Context(), cacheKey, progress, progressCacheTTL)
	}

	return response.Success(c, progress)
}

// publishRequest is the body of POST /drafts/:id/publish
type publishRequest struct {
	Title string `json:"title" validate:"max=255"`
}

// PublishDraft handles POST /api/v1/drafts/:id/publish
func (h *DraftHandler) PublishDraft(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	draftID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid draft ID")
	}

	var req publishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, err)
		}
	}

	quiz, err := h.draftService.PublishDraft(c.Context(), draftID, userID, validation.SanitizeString(req.Title))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDraftNotFound):
			return response.NotFound(c, "Draft not found")
		case errors.Is(err, services.ErrDraftNotReady):
			return response.Conflict(c, "Draft still has unprocessed chunks")
		case errors.Is(err, services.ErrNoQuestions):
			return response.BadRequest(c, "Draft has no questions to publish")
		default:
			return response.InternalServerError(c, "Failed to publish draft")
		}
	}

	h.invalidateProgress(c, draftID)

	return response.Created(c, quiz.ToResponse())
}

func (h *DraftHandler) invalidateProgress(c *fiber.Ctx, draftID uint) {
	if h.cache == nil {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return
	}
	_ = h.cache.Delete(c.Context(), fmt.Sprintf("draft:%d:progress:%d", draftID, userID))
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
