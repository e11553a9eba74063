package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/verdad/services/notifier/internal/models"
)

// CommentRepository provides access to mirrored comments
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Upsert inserts a comment keyed on comment_id. A duplicate delivery of the
// same create event updates the mutable columns instead of failing, so the
// write is safe to retry.
func (r *CommentRepository) Upsert(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "created_by", "comment_at", "updated_at"}),
		}).
		Create(comment).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert comment")
	}
	return nil
}

// UpsertBatch upserts a chunk of comments in one statement. Used by the
// backfill job, which may race with live webhook traffic on the same keys.
// Unlike the single-row upsert, the conflict clause also assigns edited_at
// and deleted_at: the periodic re-sync carries the authoritative lifecycle
// state and must reconcile edit or delete deliveries the webhook path
// missed.
func (r *CommentRepository) UpsertBatch(ctx context.Context, comments []models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	for i := range comments {
		if comments[i].ID == uuid.Nil {
			comments[i].ID = uuid.New()
		}
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "created_by", "comment_at", "edited_at", "deleted_at", "updated_at"}),
		}).
		Create(&comments).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert comment batch")
	}
	return nil
}

// SetEdited updates the body and edited_at of an existing comment. Returns
// false when no row with that comment_id exists; the caller treats that as
// an out-of-order delivery, not an error.
func (r *CommentRepository) SetEdited(ctx context.Context, commentID string, body []byte, editedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("comment_id = ?", commentID).
		Updates(map[string]interface{}{
			"body":      body,
			"edited_at": editedAt,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to mark comment edited")
	}
	return result.RowsAffected > 0, nil
}

// SetDeleted soft-deletes a comment by stamping deleted_at. The row is kept
// so threads referencing the id stay intact. Returns false when the id is
// unknown.
func (r *CommentRepository) SetDeleted(ctx context.Context, commentID string, deletedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("comment_id = ?", commentID).
		Update("deleted_at", deletedAt)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to mark comment deleted")
	}
	return result.RowsAffected > 0, nil
}

// GetByCommentID gets a mirrored comment by its collaboration backend id
func (r *CommentRepository) GetByCommentID(ctx context.Context, commentID string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Where("comment_id = ?", commentID).First(&comment).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get comment by id")
	}
	return &comment, nil
}

// ReactionRepository provides access to comment reactions
type ReactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new reaction repository
func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Add inserts a reaction keyed on (comment_id, emoji, user_id). A redelivered
// add event hits the unique index and is dropped silently.
func (r *ReactionRepository) Add(ctx context.Context, reaction *models.CommentReaction) error {
	if reaction.ID == uuid.Nil {
		reaction.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}, {Name: "emoji"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(reaction).Error
	if err != nil {
		return errors.Wrap(err, "failed to add reaction")
	}
	return nil
}

// Remove hard-deletes a reaction by its composite key. Removing a reaction
// that is already absent returns false with no error.
func (r *ReactionRepository) Remove(ctx context.Context, commentID, emoji, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("comment_id = ? AND emoji = ? AND user_id = ?", commentID, emoji, userID).
		Delete(&models.CommentReaction{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to remove reaction")
	}
	return result.RowsAffected > 0, nil
}

// TemplateRepository provides read access to email templates
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetContentByName looks up a template by exact name. The second return value
// is false when no template row exists, which callers use to fall back to the
// built-in layout.
func (r *TemplateRepository) GetContentByName(ctx context.Context, name string) (string, bool, error) {
	var template models.EmailTemplate
	err := r.db.WithContext(ctx).Where("template_name = ?", name).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "failed to get email template")
	}
	return template.TemplateContent, true, nil
}

// ProfileRepository provides access to user profiles
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByEmails gets profiles matching any of the given emails
func (r *ProfileRepository) GetByEmails(ctx context.Context, emails []string) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Select("name", "email", "avatar_url").
		Where("email IN ?", emails).
		Find(&profiles).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profiles by emails")
	}
	return profiles, nil
}

// Search finds profiles whose name or email contains the given text. An
// empty query returns all profiles.
func (r *ProfileRepository) Search(ctx context.Context, text string) ([]models.Profile, error) {
	query := r.db.WithContext(ctx).Select("name", "email", "avatar_url")
	if text != "" {
		pattern := "%" + text + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	var profiles []models.Profile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, errors.Wrap(err, "failed to search profiles")
	}
	return profiles, nil
}
