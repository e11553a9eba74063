package backfill

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/verdad/services/notifier/internal/liveblocks"
	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/models"
)

// CollabLister is the read side of the backfill: paginated room and thread
// listings plus per-thread comment fetches
type CollabLister interface {
	GetRooms(ctx context.Context, cursor string) ([]liveblocks.Room, string, error)
	GetThreads(ctx context.Context, roomID, cursor string) ([]liveblocks.Thread, string, error)
	GetRoomComments(ctx context.Context, roomID, threadID string) ([]liveblocks.Comment, error)
}

// Store is the write side: the same upsert contract the live mirror uses,
// so backfill writes stay commutative with concurrent webhook traffic on
// the same keys
type Store interface {
	UpsertBatch(ctx context.Context, comments []models.Comment) error
}

// Job mirrors all historical comments from the collaboration backend.
// Writes are chunked and run through a bounded worker pool so a large
// history cannot overwhelm the storage backend.
type Job struct {
	collab      CollabLister
	store       Store
	concurrency int
	chunkSize   int
	metrics     *metrics.Metrics
}

// NewJob creates a backfill job
func NewJob(collab CollabLister, store Store, concurrency, chunkSize int, metricsCollector *metrics.Metrics) *Job {
	if concurrency <= 0 {
		concurrency = 5
	}
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &Job{
		collab:      collab,
		store:       store,
		concurrency: concurrency,
		chunkSize:   chunkSize,
		metrics:     metricsCollector,
	}
}

// Run walks rooms, threads, and comments, upserting everything into the
// mirror. Chunk writes run concurrently up to the configured limit; the
// first failed write cancels the rest.
func (j *Job) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	total, listErr := j.mirrorRooms(ctx, g)

	// Drain in-flight writes before returning on any path: callers tear
	// down the store as soon as Run exits.
	waitErr := g.Wait()

	if listErr != nil {
		return listErr
	}
	if waitErr != nil {
		return errors.Wrap(waitErr, "backfill write failed")
	}

	log.Info().Int("comments", total).Msg("Backfill complete")
	return nil
}

func (j *Job) mirrorRooms(ctx context.Context, g *errgroup.Group) (int, error) {
	total := 0
	roomCursor := ""
	for {
		rooms, nextCursor, err := j.collab.GetRooms(ctx, roomCursor)
		if err != nil {
			return total, errors.Wrap(err, "failed to list rooms")
		}

		for _, room := range rooms {
			count, err := j.mirrorRoom(ctx, g, room.ID)
			total += count
			if err != nil {
				return total, err
			}
		}

		if nextCursor == "" {
			break
		}
		roomCursor = nextCursor
	}
	return total, nil
}

func (j *Job) mirrorRoom(ctx context.Context, g *errgroup.Group, roomID string) (int, error) {
	log.Info().Str("room_id", roomID).Msg("Backfilling room")

	total := 0
	threadCursor := ""
	for {
		threads, nextCursor, err := j.collab.GetThreads(ctx, roomID, threadCursor)
		if err != nil {
			return total, errors.Wrapf(err, "failed to list threads of room %s", roomID)
		}

		for _, thread := range threads {
			comments, err := j.collab.GetRoomComments(ctx, roomID, thread.ID)
			if err != nil {
				return total, errors.Wrapf(err, "failed to fetch comments of thread %s", thread.ID)
			}
			total += len(comments)

			records := transform(roomID, thread.ID, comments)
			for _, chunk := range chunkRecords(records, j.chunkSize) {
				chunk := chunk
				g.Go(func() error {
					if err := j.store.UpsertBatch(ctx, chunk); err != nil {
						return err
					}
					j.metrics.AddCounter(metrics.BackfillCommentsSaved, int64(len(chunk)))
					return nil
				})
			}
		}

		if nextCursor == "" {
			break
		}
		threadCursor = nextCursor
	}

	return total, nil
}

// transform maps upstream comments onto mirror records
func transform(roomID, threadID string, comments []liveblocks.Comment) []models.Comment {
	records := make([]models.Comment, 0, len(comments))
	for _, comment := range comments {
		records = append(records, models.Comment{
			CommentID: comment.ID,
			ThreadID:  threadID,
			RoomID:    roomID,
			CreatedBy: comment.UserID,
			CommentAt: comment.CreatedAt,
			EditedAt:  comment.EditedAt,
			DeletedAt: comment.DeletedAt,
			Body:      comment.Body,
		})
	}
	return records
}

// chunkRecords splits records into batches of at most size
func chunkRecords(records []models.Comment, size int) [][]models.Comment {
	var chunks [][]models.Comment
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
