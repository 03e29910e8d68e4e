package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowupsMarkAlertedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	followups := NewFollowups(testRedis(t))

	added, err := followups.MarkAlerted(ctx, "123")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = followups.MarkAlerted(ctx, "123")
	require.NoError(t, err)
	assert.False(t, added, "second mark must report already present")
}

func TestFollowupsAlerted(t *testing.T) {
	ctx := context.Background()
	followups := NewFollowups(testRedis(t))

	ok, err := followups.Alerted(ctx, "123")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = followups.MarkAlerted(ctx, "123")
	require.NoError(t, err)

	ok, err = followups.Alerted(ctx, "123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = followups.Alerted(ctx, "456")
	require.NoError(t, err)
	assert.False(t, ok, "ids must not bleed into each other")
}
