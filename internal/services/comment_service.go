package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/liveblocks"
	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/models"
	"example.com/verdad/services/notifier/internal/search"
	"example.com/verdad/services/notifier/internal/tracing"
	"example.com/verdad/services/notifier/internal/webhook"
)

// CommentStore is the storage contract the mirror writes through. The
// backfill job reuses the same contract, so live and historical writes stay
// commutative on the same keys.
type CommentStore interface {
	Upsert(ctx context.Context, comment *models.Comment) error
	SetEdited(ctx context.Context, commentID string, body []byte, editedAt time.Time) (bool, error)
	SetDeleted(ctx context.Context, commentID string, deletedAt time.Time) (bool, error)
	GetByCommentID(ctx context.Context, commentID string) (*models.Comment, error)
}

// ReactionStore is the storage contract for comment reactions
type ReactionStore interface {
	Add(ctx context.Context, reaction *models.CommentReaction) error
	Remove(ctx context.Context, commentID, emoji, userID string) (bool, error)
}

// CommentFetcher fetches authoritative comment content from the
// collaboration backend
type CommentFetcher interface {
	GetComment(ctx context.Context, roomID, threadID, commentID string) (*liveblocks.Comment, error)
}

// CommentIndexer indexes mirrored comments for search
type CommentIndexer interface {
	IndexComment(ctx context.Context, doc *search.CommentDocument) error
}

// CommentService mirrors comment activity into durable storage. Webhooks
// announce that an event happened, not its content, so every content-bearing
// operation re-queries the collaboration backend instead of trusting bytes
// embedded in the delivery.
type CommentService struct {
	comments  CommentStore
	reactions ReactionStore
	collab    CommentFetcher
	indexer   CommentIndexer
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewCommentService creates a new comment mirror service
func NewCommentService(
	comments CommentStore,
	reactions ReactionStore,
	collab CommentFetcher,
	indexer CommentIndexer,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *CommentService {
	return &CommentService{
		comments:  comments,
		reactions: reactions,
		collab:    collab,
		indexer:   indexer,
		metrics:   metricsCollector,
		tracer:    tracer,
	}
}

// OnCreated mirrors a newly created comment. Returns the flattened text of
// the comment body for notification and audit consumers.
func (s *CommentService) OnCreated(ctx context.Context, data *webhook.CommentEventData) (string, error) {
	txn := s.tracer.StartTransaction("mirror-comment-created")
	defer s.tracer.EndTransaction(txn)

	upstream, err := s.collab.GetComment(ctx, data.RoomID, data.ThreadID, data.CommentID)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return "", errors.Wrapf(ErrUpstreamFetch, "comment %s: %v", data.CommentID, err)
	}
	if len(upstream.Body) == 0 {
		return "", errors.Wrapf(ErrUpstreamFetch, "comment %s has no body", data.CommentID)
	}

	comment := &models.Comment{
		CommentID: data.CommentID,
		ThreadID:  data.ThreadID,
		RoomID:    data.RoomID,
		ProjectID: data.ProjectID,
		CreatedBy: data.CreatedBy,
		CommentAt: data.CreatedAt,
		Body:      upstream.Body,
	}

	if err := s.comments.Upsert(ctx, comment); err != nil {
		s.metrics.IncrCounter(metrics.MirrorWriteFailures)
		s.tracer.RecordError(txn, err)
		return "", errors.Wrapf(ErrStorage, "upsert comment %s: %v", data.CommentID, err)
	}
	s.metrics.IncrCounter(metrics.MirrorWrites)

	text := liveblocks.PlainText(upstream.Body)
	s.index(ctx, comment, text)

	log.Info().
		Str("comment_id", data.CommentID).
		Str("room_id", data.RoomID).
		Str("created_by", data.CreatedBy).
		Msg("Comment mirrored")

	return text, nil
}

// OnEdited re-fetches the current body and updates the mirrored comment.
// Returns the previously mirrored text and the new text for the side-channel
// alert. An edit for an id the mirror has not seen is dropped: the delivery
// arrived before the create was durably visible, and the sender will not be
// asked to retry.
func (s *CommentService) OnEdited(ctx context.Context, data *webhook.CommentEventData) (previous, current string, err error) {
	txn := s.tracer.StartTransaction("mirror-comment-edited")
	defer s.tracer.EndTransaction(txn)

	if existing, getErr := s.comments.GetByCommentID(ctx, data.CommentID); getErr == nil {
		previous = liveblocks.PlainText(existing.Body)
	}

	upstream, err := s.collab.GetComment(ctx, data.RoomID, data.ThreadID, data.CommentID)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return "", "", errors.Wrapf(ErrUpstreamFetch, "comment %s: %v", data.CommentID, err)
	}

	editedAt := time.Now().UTC()
	if data.EditedAt != nil {
		editedAt = *data.EditedAt
	}

	updated, err := s.comments.SetEdited(ctx, data.CommentID, upstream.Body, editedAt)
	if err != nil {
		s.metrics.IncrCounter(metrics.MirrorWriteFailures)
		s.tracer.RecordError(txn, err)
		return "", "", errors.Wrapf(ErrStorage, "edit comment %s: %v", data.CommentID, err)
	}
	if !updated {
		log.Debug().Str("comment_id", data.CommentID).Msg("Edit for unknown comment dropped")
		return "", "", nil
	}
	s.metrics.IncrCounter(metrics.MirrorWrites)

	current = liveblocks.PlainText(upstream.Body)
	s.index(ctx, &models.Comment{
		CommentID: data.CommentID,
		ThreadID:  data.ThreadID,
		RoomID:    data.RoomID,
		ProjectID: data.ProjectID,
		Body:      upstream.Body,
		EditedAt:  &editedAt,
	}, current)

	return previous, current, nil
}

// OnDeleted soft-deletes the mirrored comment. The row is kept so threads
// still referencing the id stay readable. Deleting an unknown id is a no-op.
func (s *CommentService) OnDeleted(ctx context.Context, data *webhook.CommentEventData) error {
	deletedAt := time.Now().UTC()
	if data.DeletedAt != nil {
		deletedAt = *data.DeletedAt
	}

	updated, err := s.comments.SetDeleted(ctx, data.CommentID, deletedAt)
	if err != nil {
		s.metrics.IncrCounter(metrics.MirrorWriteFailures)
		return errors.Wrapf(ErrStorage, "delete comment %s: %v", data.CommentID, err)
	}
	if !updated {
		log.Debug().Str("comment_id", data.CommentID).Msg("Delete for unknown comment dropped")
		return nil
	}
	s.metrics.IncrCounter(metrics.MirrorWrites)

	log.Info().Str("comment_id", data.CommentID).Msg("Comment soft-deleted")
	return nil
}

// OnReactionAdded mirrors a new reaction. Duplicate deliveries hit the
// composite unique key and are absorbed by the upsert.
func (s *CommentService) OnReactionAdded(ctx context.Context, data *webhook.ReactionEventData) error {
	reaction := &models.CommentReaction{
		CommentID: data.CommentID,
		Emoji:     data.Emoji,
		UserID:    data.AddedBy,
		AddedAt:   data.AddedAt,
	}

	if err := s.reactions.Add(ctx, reaction); err != nil {
		s.metrics.IncrCounter(metrics.MirrorWriteFailures)
		return errors.Wrapf(ErrStorage, "add reaction on %s: %v", data.CommentID, err)
	}
	s.metrics.IncrCounter(metrics.MirrorWrites)
	return nil
}

// OnReactionRemoved hard-deletes the matching reaction. Removing a reaction
// that is already absent completes silently.
func (s *CommentService) OnReactionRemoved(ctx context.Context, data *webhook.ReactionEventData) error {
	removed, err := s.reactions.Remove(ctx, data.CommentID, data.Emoji, data.RemovedBy)
	if err != nil {
		s.metrics.IncrCounter(metrics.MirrorWriteFailures)
		return errors.Wrapf(ErrStorage, "remove reaction on %s: %v", data.CommentID, err)
	}
	if !removed {
		log.Debug().
			Str("comment_id", data.CommentID).
			Str("emoji", data.Emoji).
			Msg("Removal of absent reaction ignored")
	}
	return nil
}

// index writes the comment to the search index, swallowing failures
func (s *CommentService) index(ctx context.Context, comment *models.Comment, text string) {
	if s.indexer == nil {
		return
	}

	doc := &search.CommentDocument{
		CommentID: comment.CommentID,
		ThreadID:  comment.ThreadID,
		RoomID:    comment.RoomID,
		ProjectID: comment.ProjectID,
		CreatedBy: comment.CreatedBy,
		Text:      text,
		CommentAt: comment.CommentAt,
		EditedAt:  comment.EditedAt,
		DeletedAt: comment.DeletedAt,
	}
	if err := s.indexer.IndexComment(ctx, doc); err != nil {
		log.Warn().Err(err).Str("comment_id", comment.CommentID).Msg("Failed to index comment")
	}
}
