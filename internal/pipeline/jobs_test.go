package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob("doc-1", "notes.txt", "Notes", true, []byte("x"))
	require.NotEmpty(t, job.ID)

	snap := job.Snapshot()
	assert.Equal(t, StatusQueued, snap.Status)
	assert.Equal(t, "queued", snap.Phase)
	assert.Equal(t, "doc-1", snap.DocID)
	assert.Equal(t, "Notes", snap.Title)
	assert.True(t, job.Force)
	assert.Equal(t, []byte("x"), job.FileData())

	assert.NotEqual(t, job.ID, NewJob("doc-1", "notes.txt", "", false, nil).ID)
}

func TestJob_SetStatusAdvancesUpdatedAt(t *testing.T) {
	job := NewJob("d", "a.txt", "", false, nil)
	for _, status := range []JobStatus{StatusParsing, StatusChunking, StatusEmbedding, StatusIndexing, StatusCompleted} {
		before := job.Snapshot().UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(status, string(status))

		snap := job.Snapshot()
		assert.Equal(t, status, snap.Status)
		assert.Equal(t, string(status), snap.Phase)
		assert.True(t, snap.UpdatedAt.After(before), "UpdatedAt did not advance for %s", status)
	}
}

func TestJob_ProgressCounters(t *testing.T) {
	job := NewJob("d", "a.txt", "", false, nil)
	job.SetTotalChunks(74, 2)
	job.AddEmbedded(64)
	job.AddEmbedded(10)
	job.AddIndexed(74)
	job.AddError("batch 3 failed")
	job.AddError("batch 7 failed")

	snap := job.Snapshot()
	assert.Equal(t, Progress{
		TotalChunks:    74,
		ChunksEmbedded: 74,
		ChunksIndexed:  74,
		Errors:         []string{"batch 3 failed", "batch 7 failed"},
	}, snap.Progress)
	assert.Equal(t, 2, snap.ForcedSplits)
}

func TestJob_SnapshotIsDetached(t *testing.T) {
	job := NewJob("d", "a.txt", "", false, nil)
	snap := job.Snapshot()
	require.NotNil(t, snap.Progress.Errors)
	assert.Empty(t, snap.Progress.Errors)

	job.AddError("late")
	assert.Empty(t, snap.Progress.Errors)
}

func TestJob_ReleaseFileData(t *testing.T) {
	job := NewJob("d", "a.txt", "", false, []byte("payload"))
	job.releaseFileData()
	assert.Nil(t, job.FileData())
}

func TestJobSnapshot_Terminal(t *testing.T) {
	cases := map[JobStatus]bool{
		StatusQueued:     false,
		StatusEmbedding:  false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusDupSkipped: true,
	}
	for status, want := range cases {
		assert.Equal(t, want, JobSnapshot{Status: status}.Terminal(), status)
	}
}

func TestJobStore(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)
	store.Cleanup() // empty store

	old := NewJob("old", "a.txt", "", false, nil)
	store.Put(old)
	require.Same(t, old, store.Get(old.ID))
	assert.Nil(t, store.Get("missing"))

	time.Sleep(100 * time.Millisecond)
	fresh := NewJob("new", "b.txt", "", false, nil)
	store.Put(fresh)
	store.Cleanup()

	assert.Nil(t, store.Get(old.ID), "expired job survived cleanup")
	assert.NotNil(t, store.Get(fresh.ID), "fresh job was evicted")
}
