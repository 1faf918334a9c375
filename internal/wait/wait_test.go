package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fast(timeout time.Duration) Options {
	return Options{Timeout: timeout, Interval: time.Millisecond, What: "thing"}
}

func TestFor_ReturnsValueOnceConditionHolds(t *testing.T) {
	calls := 0
	v, err := For(context.Background(), func(ctx context.Context) (int, bool, error) {
		calls++
		return calls, calls == 3, nil
	}, fast(time.Second))

	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 3, calls)
}

func TestFor_TimesOutWithTypedError(t *testing.T) {
	_, err := For(context.Background(), func(ctx context.Context) (string, bool, error) {
		return "", false, nil
	}, fast(20*time.Millisecond))

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "thing", te.What)
	assert.Equal(t, 20*time.Millisecond, te.After)
}

func TestFor_ConditionErrorAbortsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := For(context.Background(), func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, boom
	}, fast(time.Second))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestFor_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := For(ctx, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	}, fast(5*time.Second))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTry_ExpiryIsNotAnError(t *testing.T) {
	v, ok, err := Try(context.Background(), func(ctx context.Context) (int, bool, error) {
		return 7, false, nil
	}, fast(15*time.Millisecond))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestTry_ReportsSuccess(t *testing.T) {
	v, ok, err := Try(context.Background(), func(ctx context.Context) (string, bool, error) {
		return "found", true, nil
	}, fast(time.Second))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "found", v)
}

func TestAbsent(t *testing.T) {
	remaining := 2
	err := Absent(context.Background(), func(ctx context.Context) (bool, error) {
		remaining--
		return remaining > 0, nil
	}, fast(time.Second))
	require.NoError(t, err)

	err = Absent(context.Background(), func(ctx context.Context) (bool, error) {
		return true, nil
	}, fast(10*time.Millisecond))
	var te *TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultInterval, o.Interval)
	assert.Equal(t, "condition", o.What)
}
