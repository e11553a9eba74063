package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Comment is the durable mirror of a collaboration backend comment.
// Rows are never hard-deleted: DeletedAt marks a comment as removed while
// keeping the id resolvable for readers that still reference it.
type Comment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CommentID string     `gorm:"column:comment_id;not null;uniqueIndex" json:"comment_id"`
	ThreadID  string     `gorm:"not null;index" json:"thread_id"`
	RoomID    string     `gorm:"not null;index" json:"room_id"`
	ProjectID string     `json:"project_id"`
	CreatedBy string     `gorm:"not null" json:"created_by"`
	CommentAt *time.Time `json:"comment_at"`
	EditedAt  *time.Time `json:"edited_at"`
	DeletedAt *time.Time `json:"deleted_at"`
	Body      []byte     `gorm:"type:jsonb" json:"body"`
}

// TableName overrides the default table name
func (Comment) TableName() string {
	return "comments"
}

// CommentReaction is a single emoji reaction on a mirrored comment,
// unique per (comment_id, emoji, user_id).
type CommentReaction struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CommentID string     `gorm:"not null;uniqueIndex:idx_reaction_key" json:"comment_id"`
	Emoji     string     `gorm:"not null;uniqueIndex:idx_reaction_key" json:"emoji"`
	UserID    string     `gorm:"not null;uniqueIndex:idx_reaction_key" json:"user_id"`
	AddedAt   *time.Time `json:"added_at"`
}

// TableName overrides the default table name
func (CommentReaction) TableName() string {
	return "comment_reactions"
}

// EmailTemplate is a named HTML template with literal placeholder tokens.
// The notifier only reads this table; templates are managed elsewhere.
type EmailTemplate struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	TemplateName    string    `gorm:"not null;uniqueIndex" json:"template_name"`
	TemplateContent string    `gorm:"not null" json:"template_content"`
}

// TableName overrides the default table name
func (EmailTemplate) TableName() string {
	return "email_template"
}

// Profile is a user profile used by the lookup and search endpoints
type Profile struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `json:"name"`
	Email     string         `gorm:"not null;uniqueIndex" json:"email"`
	AvatarURL string         `gorm:"column:avatar_url" json:"avatar_url"`
}

// TableName overrides the default table name
func (Profile) TableName() string {
	return "profiles"
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Comment{},
		&CommentReaction{},
		&EmailTemplate{},
		&Profile{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
