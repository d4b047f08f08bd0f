package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimezone(t *testing.T) {
	_, err := New("Local", nil)
	require.NoError(t, err)
	_, err = New("", nil)
	require.NoError(t, err)
	_, err = New("UTC", nil)
	require.NoError(t, err)
	_, err = New("Not/AZone", nil)
	assert.Error(t, err)
}

func TestAddRemoveJob(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.AddJob("reconcile", "*/5 * * * *", noop))
	assert.Error(t, s.AddJob("bad", "every now and then", noop))

	s.Start()
	defer s.Stop()

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "reconcile", jobs[0].Name)
	assert.False(t, jobs[0].NextRun.IsZero())

	s.RemoveJob("reconcile")
	assert.Empty(t, s.ListJobs())
}

func TestRunNow(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)

	ran := false
	require.NoError(t, s.RunNow(context.Background(), "reconcile", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow(context.Background(), "fail", func(context.Context) error { return boom }), boom)
}
