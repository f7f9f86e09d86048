package lms

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/config"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

func sampleAttempt() *Attempt {
	attempt := NewAttempt("learner-1", "course-1", scorm.Version2004)
	attempt.CreatedAt = attempt.CreatedAt.Truncate(time.Millisecond)
	attempt.UpdatedAt = attempt.CreatedAt
	attempt.Sessions = 1
	attempt.Data[scorm.SuspendDataField] = `{"page":2}`
	attempt.Data["cmi.completion_status"] = "incomplete"
	return attempt
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.LoadAttempt(ctx, "learner-1", "course-1")
	require.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = store.LoadAttempt(ctx, "", "course-1")
	require.ErrorIs(t, err, ErrEmptyLearnerID)

	attempt := sampleAttempt()
	require.NoError(t, store.SaveAttempt(ctx, attempt))

	loaded, err := store.LoadAttempt(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, attempt.AttemptID, loaded.AttemptID)
	require.Equal(t, attempt.Version, loaded.Version)
	require.Equal(t, attempt.Sessions, loaded.Sessions)
	require.Equal(t, attempt.Data, loaded.Data)
	require.True(t, attempt.CreatedAt.Equal(loaded.CreatedAt))

	attempt.Sessions = 2
	attempt.Data["cmi.completion_status"] = "completed"
	require.NoError(t, store.SaveAttempt(ctx, attempt))
	loaded, err = store.LoadAttempt(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Sessions)
	require.Equal(t, "completed", loaded.Data["cmi.completion_status"])

	_, err = store.LoadAttempt(ctx, "learner-1", "course-2")
	require.ErrorIs(t, err, ErrAttemptNotFound)

	require.ErrorIs(t, store.SaveAttempt(ctx, &Attempt{CourseID: "course-1"}), ErrEmptyLearnerID)
	require.ErrorIs(t, store.SaveAttempt(ctx, &Attempt{LearnerID: "learner-1"}), ErrEmptyCourseID)

	require.NoError(t, store.DeleteAttempt(ctx, "learner-1", "course-1"))
	_, err = store.LoadAttempt(ctx, "learner-1", "course-1")
	require.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	attempt := sampleAttempt()
	require.NoError(t, store.SaveAttempt(ctx, attempt))

	attempt.Data[scorm.SuspendDataField] = "changed"
	loaded, err := store.LoadAttempt(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, `{"page":2}`, loaded.Data[scorm.SuspendDataField])

	loaded.Data[scorm.SuspendDataField] = "changed again"
	again, err := store.LoadAttempt(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, `{"page":2}`, again.Data[scorm.SuspendDataField])
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "nested", "scorm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	testStore(t, store)
}

func TestSQLiteStoreEmptyPath(t *testing.T) {
	_, err := OpenSQLiteStore("")
	require.Error(t, err)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SCORM_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SCORM_TEST_MONGO_URI not set")
	}
	cfg := config.DefaultConfig().Store
	cfg.Mongo.Database = "scorm_test_" + uuid.NewString()[:8]

	store, err := connectMongo(context.Background(), uri, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.attempts.Database().Drop(context.Background())
		_ = store.Close(context.Background())
	})
	testStore(t, store)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig().Store

	cfg.Driver = "memory"
	store, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)

	cfg.Driver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "scorm.db")
	store, err = OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &CachedStore{}, store)
	require.NoError(t, NewStoreCloseCallback(store).Invoke(ctx))

	cfg.CacheSize = 0
	cfg.SQLitePath = filepath.Join(t.TempDir(), "uncached.db")
	store, err = OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close(ctx))

	cfg.Driver = "redis"
	_, err = OpenStore(ctx, cfg)
	require.ErrorContains(t, err, "unknown store driver")
}

func TestAttemptMigrate(t *testing.T) {
	attempt := NewAttempt("learner-1", "course-1", scorm.Version12)
	attempt.Data["cmi.core.lesson_status"] = "failed"
	attempt.Data["cmi.core.lesson_location"] = "p7"
	attempt.Data["cmi.core.student_name"] = "Ada"
	attempt.Data[scorm.SuspendDataField] = "blob"

	attempt.migrate(scorm.Version2004)
	require.Equal(t, scorm.Version2004, attempt.Version)
	require.Equal(t, map[string]string{
		"cmi.completion_status": "completed",
		"cmi.success_status":    "failed",
		"cmi.location":          "p7",
		scorm.SuspendDataField:  "blob",
	}, attempt.Data)

	attempt.migrate(scorm.Version12)
	require.Equal(t, "failed", attempt.Data["cmi.core.lesson_status"])
	require.Equal(t, "p7", attempt.Data["cmi.core.lesson_location"])

	attempt.migrate("3.0")
	require.Equal(t, scorm.Version12, attempt.Version)
}

type countingStore struct {
	*MemoryStore
	loads int
}

func (cs *countingStore) LoadAttempt(ctx context.Context, learnerID, courseID string) (*Attempt, error) {
	cs.loads++
	return cs.MemoryStore.LoadAttempt(ctx, learnerID, courseID)
}

func TestCachedStore(t *testing.T) {
	testStore(t, NewCachedStore(NewMemoryStore(), 8, time.Minute))

	ctx := context.Background()
	backend := &countingStore{MemoryStore: NewMemoryStore()}
	store := NewCachedStore(backend, 8, time.Minute)

	require.NoError(t, store.SaveAttempt(ctx, sampleAttempt()))
	require.Equal(t, 1, store.Len())

	first, err := store.LoadAttempt(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	first.Data[scorm.SuspendDataField] = "mutated"
	second, err := store.LoadAttempt(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, `{"page":2}`, second.Data[scorm.SuspendDataField])
	require.Zero(t, backend.loads)

	require.NoError(t, store.DeleteAttempt(ctx, "learner-1", "course-1"))
	_, err = store.LoadAttempt(ctx, "learner-1", "course-1")
	require.ErrorIs(t, err, ErrAttemptNotFound)
	require.Equal(t, 1, backend.loads)
}
