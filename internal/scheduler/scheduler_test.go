package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orchestratord/oj/internal/clock"
)

func TestSetIsIdempotentPerID(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	s := New(c)

	id := NewID("idle-grace", "agent_1", "classify")
	s.Set(id, c.Now().Add(time.Minute))
	s.Set(id, c.Now().Add(2*time.Minute))

	require.Equal(t, 1, s.Len())
	require.True(t, s.Pending(id))
}

func TestDrainFiresInDeadlineOrder(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	s := New(c)

	late := NewID("liveness", "job_1", "heartbeat")
	early := NewID("cron", "nightly", "tick")
	s.Set(late, c.Now().Add(2*time.Second))
	s.Set(early, c.Now().Add(time.Second))

	fired := s.Drain(c.Now().Add(3 * time.Second))
	require.Equal(t, []ID{early, late}, fired)
	require.Equal(t, 0, s.Len())
}

func TestDrainOnlyFiresPastDeadlines(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	s := New(c)

	id := NewID("queue-retry", "demo/bugs", "item_9")
	s.Set(id, c.Now().Add(10*time.Second))

	require.Empty(t, s.Drain(c.Now().Add(time.Second)))
	require.Equal(t, 1, s.Len())
}

func TestCancelRemovesTimer(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	s := New(c)

	id := NewID("worker-poll", "demo/bugs", "list")
	s.Set(id, c.Now().Add(time.Second))
	s.Cancel(id)

	require.False(t, s.Pending(id))
	require.Empty(t, s.Drain(c.Now().Add(time.Hour)))
}

func TestParseIntervalCronAndDuration(t *testing.T) {
	iv, err := ParseInterval("*/5 * * * *")
	require.NoError(t, err)
	require.True(t, iv.IsCron())

	iv2, err := ParseInterval("30s")
	require.NoError(t, err)
	require.False(t, iv2.IsCron())

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, from.Add(30*time.Second), iv2.Next(from))

	_, err = ParseInterval("not-an-interval")
	require.Error(t, err)
}
