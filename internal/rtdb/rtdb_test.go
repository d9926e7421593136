package rtdb_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/outofoffice3/aws-samples/hermes/internal/rtdb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *rtdb.DB) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	db, err := rtdb.New(client, "test:")
	require.NoError(t, err)
	return mr, db
}

func TestNew_NilClient(t *testing.T) {
	db, err := rtdb.New(nil, "")
	assert.Nil(t, db)
	assert.EqualError(t, err, rtdb.ClientNilErrMsg)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "messages/abc/original", rtdb.Clean("/messages//abc/original/"))
	assert.Equal(t, "users/u1/notificationTokens", rtdb.Join("/users", "u1", "notificationTokens"))
}

func TestSetGetRemove(t *testing.T) {
	mr, db := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, "/messages/m1/original", "hello"))
	assert.Equal(t, "hello", mr.HGet("test:messages/m1", "original"))

	v, ok, err := db.Get(ctx, "messages/m1/original")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	require.NoError(t, db.Remove(ctx, "messages/m1/original"))
	_, ok, err = db.Get(ctx, "messages/m1/original")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChildren(t *testing.T) {
	_, db := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, "users/u1/notificationTokens/tokA", "true"))
	require.NoError(t, db.Set(ctx, "users/u1/notificationTokens/tokB", "true"))

	kids, err := db.Children(ctx, "/users/u1/notificationTokens")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tokA": "true", "tokB": "true"}, kids)

	empty, err := db.Children(ctx, "users/nobody/notificationTokens")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPush(t *testing.T) {
	_, db := setupTestRedis(t)
	ctx := context.Background()

	id, err := db.Push(ctx, "/messages", map[string]string{"original": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	v, ok, err := db.Get(ctx, rtdb.Join("messages", id, "original"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hi", v)

	_, err = db.Push(ctx, "/messages", nil)
	assert.Error(t, err)
}

func TestBadPath(t *testing.T) {
	_, db := setupTestRedis(t)
	assert.Error(t, db.Set(context.Background(), "root", "x"))
}

func TestRemoveChildren(t *testing.T) {
	mr, db := setupTestRedis(t)
	ctx := context.Background()
	arn := "arn:aws:sns:us-east-1:123456789012:endpoint/GCM/app/abc"
	mr.HSet("test:users/u1/notificationTokens", arn, "true")
	mr.HSet("test:users/u1/notificationTokens", "keep", "true")

	require.NoError(t, db.RemoveChildren(ctx, "users/u1/notificationTokens", arn))
	kids, err := db.Children(ctx, "users/u1/notificationTokens")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keep": "true"}, kids)
	assert.NoError(t, db.RemoveChildren(ctx, "users/u1/notificationTokens"))
}
