package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a local redis; skipped otherwise.
func TestRedisQueueIntegration(t *testing.T) {
	q := NewRedisQueue("localhost:6379", "", 0, "signflow-test-"+uuid.NewString(), 2)
	defer q.Close()
	ctx := context.Background()
	if err := q.Ping(ctx); err != nil {
		t.Skip("Skipping redis integration test: redis not available")
	}
	t.Cleanup(func() { q.client.Del(ctx, q.queueKey(), q.deadKey()) })

	require.NoError(t, q.Enqueue(ctx, "a", map[string]any{"k": "v"}))
	require.NoError(t, q.Enqueue(ctx, "b", nil))

	tasks, err := q.Next(ctx, 5)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Name)
	assert.Equal(t, "v", tasks[0].Payload["k"])

	require.NoError(t, q.Finish(ctx, tasks[0], nil))
	require.NoError(t, q.Finish(ctx, tasks[1], errors.New("x")))
	retry, err := q.Next(ctx, 5)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].Attempts)

	require.NoError(t, q.Finish(ctx, retry[0], errors.New("x")))
	dead, err := q.Dead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}
