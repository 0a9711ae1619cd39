package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Success(t *testing.T) {
	var count atomic.Int32
	inc := func(_ context.Context) error {
		count.Add(1)
		return nil
	}

	err := RunParallel(context.Background(), []Task{
		{Name: "task1", Func: inc},
		{Name: "task2", Func: inc},
		{Name: "task3", Func: inc},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	assert.NoError(t, RunParallel(context.Background(), nil))
	assert.NoError(t, RunParallel(context.Background(), []Task{}))
}

func TestRunParallel_Error(t *testing.T) {
	expectedErr := errors.New("task failed")
	var ran atomic.Int32

	err := RunParallel(context.Background(), []Task{
		{Name: "success", Func: func(_ context.Context) error {
			ran.Add(1)
			return nil
		}},
		{Name: "failing", Func: func(_ context.Context) error {
			ran.Add(1)
			return expectedErr
		}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, int32(2), ran.Load(), "all tasks run even when one fails")
}
