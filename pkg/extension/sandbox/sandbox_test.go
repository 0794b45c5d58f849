package sandbox

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsHookError(t *testing.T) {
	sb := NewSandbox("rainbow", DefaultLimits(), nil)
	want := errors.New("boom")

	err := sb.Execute("visualise", func() error { return want })
	assert.ErrorIs(t, err, want)

	calls, failures, last := sb.Stats()
	assert.Equal(t, int64(1), calls)
	assert.Equal(t, int64(1), failures)
	assert.ErrorIs(t, last, want)
}

func TestExecuteRecoversPanic(t *testing.T) {
	sb := NewSandbox("rainbow", DefaultLimits(), nil)

	err := sb.Execute("setup", func() error { panic("index out of range") })
	require.Error(t, err)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "setup", pe.Hook)
	assert.Contains(t, err.Error(), "rainbow: setup panicked: index out of range")
}

func TestSlowHookIsReportedNotPreempted(t *testing.T) {
	var reported atomic.Int32
	sb := NewSandbox("mirror", Limits{WarnAfter: 10 * time.Millisecond},
		func(owner, hook string, elapsed time.Duration) {
			assert.Equal(t, "mirror", owner)
			assert.Equal(t, "teardown", hook)
			reported.Add(1)
		})

	finished := false
	err := sb.Execute("teardown", func() error {
		time.Sleep(50 * time.Millisecond)
		finished = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, int32(1), reported.Load())
}

func TestFastHookNotReported(t *testing.T) {
	var reported atomic.Int32
	sb := NewSandbox("solid", Limits{WarnAfter: time.Second},
		func(string, string, time.Duration) { reported.Add(1) })

	require.NoError(t, sb.Execute("visualise", func() error { return nil }))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int32(0), reported.Load())
}
