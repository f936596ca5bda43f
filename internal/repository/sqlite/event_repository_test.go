package sqlite

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"facewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestDatabase_MigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestEventRepository_InsertPreservesOrder(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	base := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	names := []string{"alice", "bob", model.UnknownEventName, "alice"}
	for i, name := range names {
		status := model.StatusRecognized
		if name == model.UnknownEventName {
			status = model.StatusCaptured
		}
		ev := model.NewDetectionEvent(name, status, base.Add(time.Duration(i)*time.Second))
		id, err := repo.Insert(&ev)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	events, err := repo.List(nil)
	require.NoError(t, err)
	require.Len(t, events, len(names))
	for i, ev := range events {
		assert.Equal(t, names[i], ev.Name)
		assert.True(t, ev.Timestamp.Equal(base.Add(time.Duration(i)*time.Second)))
		assert.NotEmpty(t, ev.EventID)
	}
	assert.Equal(t, model.StatusCaptured, events[2].Status)
}

func TestEventRepository_ListFilters(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ev := model.NewDetectionEvent("alice", model.StatusRecognized, base.Add(time.Duration(i)*time.Minute))
		_, err := repo.Insert(&ev)
		require.NoError(t, err)
	}
	stranger := model.NewDetectionEvent(model.UnknownEventName, model.StatusCaptured, base.Add(10*time.Minute))
	_, err := repo.Insert(&stranger)
	require.NoError(t, err)

	tests := []struct {
		name     string
		filter   model.EventFilter
		expected int
	}{
		{"by name", model.EventFilter{Name: "alice"}, 5},
		{"by status", model.EventFilter{Status: model.StatusCaptured}, 1},
		{"since", model.EventFilter{Since: base.Add(3 * time.Minute)}, 3},
		{"limit", model.EventFilter{Limit: 2}, 2},
		{"no match", model.EventFilter{Name: "mallory"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := repo.List(&tt.filter)
			require.NoError(t, err)
			assert.Len(t, events, tt.expected)
		})
	}

	recent, err := repo.List(&model.EventFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "alice", recent[0].Name)
	assert.Equal(t, model.UnknownEventName, recent[1].Name)
}

func TestEventRepository_CountByStatus(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	now := time.Now()

	for _, status := range []model.EventStatus{model.StatusRecognized, model.StatusRecognized, model.StatusCaptured} {
		ev := model.NewDetectionEvent("x", status, now)
		_, err := repo.Insert(&ev)
		require.NoError(t, err)
	}

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.StatusRecognized])
	assert.Equal(t, 1, counts[model.StatusCaptured])
}

func TestEventRepository_InsertWithoutSchemaFails(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	ev := model.NewDetectionEvent("alice", model.StatusRecognized, time.Now())
	_, err = NewEventRepository(db).Insert(&ev)
	assert.Error(t, err)
}

func TestEventRepository_ConcurrentInserts(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := model.NewDetectionEvent("alice", model.StatusRecognized, time.Now())
			_, err := repo.Insert(&ev)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, err := repo.List(nil)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}
