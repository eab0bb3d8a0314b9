package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered user. Credentials and session management are
// handled by an external identity service; this row only anchors ownership.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, admin

	// Relationships
	Drafts  []Draft `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Quizzes []Quiz  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
