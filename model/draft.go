package model

import (
	"time"

	"gorm.io/gorm"
)

// DraftStatus represents the lifecycle state of a quiz draft
type DraftStatus string

const (
	DraftPending    DraftStatus = "pending"
	DraftProcessing DraftStatus = "processing"
	DraftCompleted  DraftStatus = "completed"
	DraftError      DraftStatus = "error"
)

// ChunkStatus represents the processing state of a single PDF chunk
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkDone       ChunkStatus = "done"
	ChunkError      ChunkStatus = "error"
)

// Draft is a transient, user-owned work-in-progress quiz assembled from
// the questions extracted out of an uploaded PDF.
type Draft struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	UserID          uint           `gorm:"index;not null" json:"user_id"`
	Title           string         `gorm:"type:varchar(255)" json:"title"`
	SourceFilename  string         `gorm:"type:varchar(255)" json:"source_filename,omitempty"`
	PDFKey          string         `gorm:"type:varchar(512)" json:"-"` // object storage key of the raw PDF
	Status          DraftStatus    `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	TotalChunks     int            `gorm:"default:0" json:"total_chunks"`
	ProcessedChunks int            `gorm:"default:0" json:"processed_chunks"` // mirror of |done chunks|, recomputed on every commit
	CurrentChunk    int            `gorm:"default:0" json:"current_chunk"`    // index most recently locked, informational
	ExpiresAt       time.Time      `gorm:"index" json:"expires_at"`

	// Relationships
	Chunks    []DraftChunk    `gorm:"foreignKey:DraftID;constraint:OnDelete:CASCADE" json:"chunks,omitempty"`
	Questions []DraftQuestion `gorm:"foreignKey:DraftID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// DraftChunk is one contiguous page range of the source PDF, processed as
// an independent unit of extraction work.
//
// State machine: pending -> processing -> {done | error}; error -> processing
// on retry; processing -> processing only through stale-lock takeover.
// A chunk that reaches done never regresses.
type DraftChunk struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	DraftID    uint        `gorm:"not null;uniqueIndex:idx_draft_chunk" json:"draft_id"`
	ChunkIndex int         `gorm:"not null;uniqueIndex:idx_draft_chunk" json:"chunk_index"`
	StartPage  int         `gorm:"not null" json:"start_page"` // 1-based inclusive
	EndPage    int         `gorm:"not null" json:"end_page"`   // 1-based inclusive
	Status     ChunkStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	LockedAt   *time.Time  `json:"locked_at,omitempty"` // staleness detection, not ownership identity
	LockedBy   string      `gorm:"type:varchar(64)" json:"locked_by,omitempty"`
	Error      string      `gorm:"type:text" json:"error,omitempty"`

	Draft Draft `gorm:"foreignKey:DraftID;constraint:OnDelete:CASCADE" json:"-"`
}

// DraftProgress is the per-call progress snapshot returned to polling clients.
type DraftProgress struct {
	Processed      int  `json:"processed"`
	Total          int  `json:"total"`
	Errors         int  `json:"errors"`
	IsComplete     bool `json:"isComplete"`
	TotalQuestions int  `json:"totalQuestions"`
}

// ============= Response Types =============

// DraftResponse is used for API responses
type DraftResponse struct {
	ID              uint                    `json:"id"`
	Title           string                  `json:"title"`
	SourceFilename  string                  `json:"source_filename,omitempty"`
	Status          DraftStatus             `json:"status"`
	TotalChunks     int                     `json:"total_chunks"`
	ProcessedChunks int                     `json:"processed_chunks"`
	ExpiresAt       time.Time               `json:"expires_at"`
	Chunks          []DraftChunkResponse    `json:"chunks,omitempty"`
	Questions       []DraftQuestionResponse `json:"questions,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// DraftChunkResponse is used for API responses
type DraftChunkResponse struct {
	ChunkIndex int         `json:"chunk_index"`
	StartPage  int         `json:"start_page"`
	EndPage    int         `json:"end_page"`
	Status     ChunkStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
}

// DraftSummary is a lightweight version for listing
type DraftSummary struct {
	ID              uint        `json:"id"`
	Title           string      `json:"title"`
	Status          DraftStatus `json:"status"`
	TotalChunks     int         `json:"total_chunks"`
	ProcessedChunks int         `json:"processed_chunks"`
	ExpiresAt       time.Time   `json:"expires_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// DraftsListResponse for listing multiple drafts
type DraftsListResponse struct {
	Drafts []DraftSummary `json:"drafts"`
	Total  int            `json:"total"`
}

// ToResponse converts a Draft to a DraftResponse
func (d *Draft) ToResponse() *DraftResponse {
	resp := &DraftResponse{
		ID:              d.ID,
		Title:           d.Title,
		SourceFilename:  d.SourceFilename,
		Status:          d.Status,
		TotalChunks:     d.TotalChunks,
		ProcessedChunks: d.ProcessedChunks,
		ExpiresAt:       d.ExpiresAt,
		Chunks:          make([]DraftChunkResponse, 0, len(d.Chunks)),
		Questions:       make([]DraftQuestionResponse, 0, len(d.Questions)),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}

	for _, c := range d.Chunks {
		resp.Chunks = append(resp.Chunks, DraftChunkResponse{
			ChunkIndex: c.ChunkIndex,
			StartPage:  c.StartPage,
			EndPage:    c.EndPage,
			Status:     c.Status,
			Error:      c.Error,
		})
	}

	for _, q := range d.Questions {
		resp.Questions = append(resp.Questions, q.ToResponse())
	}

	return resp
}

// ToSummary converts a Draft to a DraftSummary
func (d *Draft) ToSummary() DraftSummary {
	return DraftSummary{
		ID:              d.ID,
		Title:           d.Title,
		Status:          d.Status,
		TotalChunks:     d.TotalChunks,
		ProcessedChunks: d.ProcessedChunks,
		ExpiresAt:       d.ExpiresAt,
		CreatedAt:       d.CreatedAt,
	}
}
