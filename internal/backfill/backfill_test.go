package backfill

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/verdad/services/notifier/internal/liveblocks"
	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/models"
)

// fakeCollab serves a fixed tree of rooms, threads, and comments, with
// rooms split across two pages to exercise cursor pagination
type fakeCollab struct {
	rooms            []liveblocks.Room
	threadsByRoom    map[string][]liveblocks.Thread
	commentsByThread map[string][]liveblocks.Comment
}

func (f *fakeCollab) GetRooms(ctx context.Context, cursor string) ([]liveblocks.Room, string, error) {
	if cursor == "" {
		if len(f.rooms) <= 1 {
			return f.rooms, "", nil
		}
		return f.rooms[:1], "page2", nil
	}
	return f.rooms[1:], "", nil
}

func (f *fakeCollab) GetThreads(ctx context.Context, roomID, cursor string) ([]liveblocks.Thread, string, error) {
	return f.threadsByRoom[roomID], "", nil
}

func (f *fakeCollab) GetRoomComments(ctx context.Context, roomID, threadID string) ([]liveblocks.Comment, error) {
	return f.commentsByThread[threadID], nil
}

// countingStore records every batch and tracks how many writes run at once
type countingStore struct {
	mu      sync.Mutex
	batches [][]models.Comment
	total   int64

	inFlight    int64
	maxInFlight int64
}

func (s *countingStore) UpsertBatch(ctx context.Context, comments []models.Comment) error {
	current := atomic.AddInt64(&s.inFlight, 1)
	defer atomic.AddInt64(&s.inFlight, -1)

	for {
		observed := atomic.LoadInt64(&s.maxInFlight)
		if current <= observed || atomic.CompareAndSwapInt64(&s.maxInFlight, observed, current) {
			break
		}
	}

	// Give other batch writers a chance to overlap
	time.Sleep(5 * time.Millisecond)

	atomic.AddInt64(&s.total, int64(len(comments)))
	s.mu.Lock()
	s.batches = append(s.batches, comments)
	s.mu.Unlock()
	return nil
}

func buildFixture(roomCount, commentsPerThread int) *fakeCollab {
	f := &fakeCollab{
		threadsByRoom:    make(map[string][]liveblocks.Thread),
		commentsByThread: make(map[string][]liveblocks.Comment),
	}
	for r := 0; r < roomCount; r++ {
		roomID := fmt.Sprintf("room-%d", r)
		threadID := fmt.Sprintf("thread-%d", r)
		f.rooms = append(f.rooms, liveblocks.Room{ID: roomID})
		f.threadsByRoom[roomID] = []liveblocks.Thread{{ID: threadID, RoomID: roomID}}

		for c := 0; c < commentsPerThread; c++ {
			f.commentsByThread[threadID] = append(f.commentsByThread[threadID], liveblocks.Comment{
				ID:     fmt.Sprintf("%s-comment-%d", threadID, c),
				UserID: "user-1",
				Body:   []byte(`{"content":[]}`),
			})
		}
	}
	return f
}

func TestRunMirrorsEveryComment(t *testing.T) {
	collab := buildFixture(2, 150)
	store := &countingStore{}

	job := NewJob(collab, store, 5, 100, metrics.NewMetrics())
	err := job.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, int64(300), store.total)

	// 150 comments per thread split as 100 + 50
	require.Len(t, store.batches, 4)
	for _, batch := range store.batches {
		require.LessOrEqual(t, len(batch), 100)
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	collab := buildFixture(6, 120)
	store := &countingStore{}

	job := NewJob(collab, store, 3, 50, metrics.NewMetrics())
	err := job.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, int64(720), store.total)
	require.LessOrEqual(t, store.maxInFlight, int64(3))
}

func TestRunPreservesCommentFields(t *testing.T) {
	editedAt := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	deletedAt := time.Date(2025, 2, 2, 18, 30, 0, 0, time.UTC)
	collab := &fakeCollab{
		rooms:         []liveblocks.Room{{ID: "room-1"}},
		threadsByRoom: map[string][]liveblocks.Thread{"room-1": {{ID: "thread-1", RoomID: "room-1"}}},
		commentsByThread: map[string][]liveblocks.Comment{
			"thread-1": {{
				ID:        "cm-1",
				UserID:    "author-1",
				EditedAt:  &editedAt,
				DeletedAt: &deletedAt,
				Body:      []byte(`{"content":[]}`),
			}},
		},
	}
	store := &countingStore{}

	job := NewJob(collab, store, 1, 100, metrics.NewMetrics())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.batches, 1)
	record := store.batches[0][0]
	require.Equal(t, "cm-1", record.CommentID)
	require.Equal(t, "thread-1", record.ThreadID)
	require.Equal(t, "room-1", record.RoomID)
	require.Equal(t, "author-1", record.CreatedBy)
	// Lifecycle timestamps ride along so the re-sync can reconcile edits
	// and deletions the webhook path missed
	require.Equal(t, &editedAt, record.EditedAt)
	require.Equal(t, &deletedAt, record.DeletedAt)
}

type failingStore struct {
	calls int64
}

func (s *failingStore) UpsertBatch(ctx context.Context, comments []models.Comment) error {
	atomic.AddInt64(&s.calls, 1)
	return errors.New("db down")
}

func TestRunReportsWriteFailure(t *testing.T) {
	collab := buildFixture(1, 10)
	store := &failingStore{}

	job := NewJob(collab, store, 2, 100, metrics.NewMetrics())
	err := job.Run(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "backfill write failed")
}

// haltingLister serves one good room, then fails the thread listing of the
// second room once the first room's write has started
type haltingLister struct {
	*fakeCollab
	writeStarted <-chan struct{}
	writeRelease chan<- struct{}
}

func (l *haltingLister) GetThreads(ctx context.Context, roomID, cursor string) ([]liveblocks.Thread, string, error) {
	if roomID == "room-1" {
		<-l.writeStarted
		go func() {
			time.Sleep(20 * time.Millisecond)
			close(l.writeRelease)
		}()
		return nil, "", errors.New("listing failed")
	}
	return l.fakeCollab.GetThreads(ctx, roomID, cursor)
}

// blockingStore holds every write until released and tracks how many are
// still running
type blockingStore struct {
	inFlight  int64
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func (s *blockingStore) UpsertBatch(ctx context.Context, comments []models.Comment) error {
	atomic.AddInt64(&s.inFlight, 1)
	defer atomic.AddInt64(&s.inFlight, -1)

	s.startOnce.Do(func() { close(s.started) })
	<-s.release
	return nil
}

func TestRunDrainsWritesWhenListingFails(t *testing.T) {
	store := &blockingStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	collab := &haltingLister{
		fakeCollab:   buildFixture(2, 10),
		writeStarted: store.started,
		writeRelease: store.release,
	}

	job := NewJob(collab, store, 5, 100, metrics.NewMetrics())
	err := job.Run(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "listing failed")

	// The listing error must not strand in-flight chunk writes: callers
	// close the store right after Run returns
	require.Zero(t, atomic.LoadInt64(&store.inFlight))
}

func TestRunEmptyTree(t *testing.T) {
	collab := &fakeCollab{
		threadsByRoom:    map[string][]liveblocks.Thread{},
		commentsByThread: map[string][]liveblocks.Comment{},
	}
	store := &countingStore{}

	job := NewJob(collab, store, 5, 100, metrics.NewMetrics())
	require.NoError(t, job.Run(context.Background()))
	require.Zero(t, store.total)
}
