package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ragcore/internal/model"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStartAndGet(t *testing.T) {
	r := New(0, nil)
	r.Start(model.IngestRun{RunID: "r1", Phase: model.Phase("queued")})
	run, ok := r.Get("r1")
	require.True(t, ok)
	require.Equal(t, "r1", run.RunID)
}

func TestUpdateNotifiesSubscribers(t *testing.T) {
	r := New(0, nil)
	r.Start(model.IngestRun{RunID: "r1"})
	ch, unsub, ok := r.Subscribe("r1")
	require.True(t, ok)
	defer unsub()

	r.Update(model.IngestRun{RunID: "r1", Percent: 50})
	select {
	case run := <-ch:
		require.Equal(t, 50, run.Percent)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestRequestCancelAndIsCancelled(t *testing.T) {
	r := New(0, nil)
	r.Start(model.IngestRun{RunID: "r1"})
	require.False(t, r.IsCancelled("r1"))
	require.True(t, r.RequestCancel("r1"))
	require.True(t, r.IsCancelled("r1"))
	require.False(t, r.RequestCancel("missing"))
}

func TestEvictRemovesStaleRuns(t *testing.T) {
	base := time.Now()
	clock := base
	r := New(time.Minute, func() time.Time { return clock })
	r.Start(model.IngestRun{RunID: "r1"})

	clock = base.Add(2 * time.Minute)
	r.Evict()
	_, ok := r.Get("r1")
	require.False(t, ok)
}
