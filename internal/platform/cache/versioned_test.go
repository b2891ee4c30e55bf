package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupResult struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) *Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "catalog", time.Minute)
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return lookupResult{ID: int64(calls), Name: "Mantenimiento"}, nil
	}

	var first, second lookupResult
	require.NoError(t, c.FetchJSON(ctx, &first, loader, "type", "Mantenimiento"))
	require.NoError(t, c.FetchJSON(ctx, &second, loader, "type", "Mantenimiento"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	require.NoError(t, c.Bump(ctx))
	var third lookupResult
	require.NoError(t, c.FetchJSON(ctx, &third, loader, "type", "Mantenimiento"))
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 2, third.ID)
}

func TestFetchJSONDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	boom := errors.New("not found")
	var dest lookupResult
	err := c.FetchJSON(ctx, &dest, func(context.Context) (any, error) { return nil, boom }, "priority", "x")
	assert.ErrorIs(t, err, boom)

	err = c.FetchJSON(ctx, &dest, func(context.Context) (any, error) { return lookupResult{ID: 7}, nil }, "priority", "x")
	require.NoError(t, err)
	assert.EqualValues(t, 7, dest.ID)
}

func TestFetchJSONWithoutClient(t *testing.T) {
	var c *Versioned
	var dest lookupResult
	err := c.FetchJSON(context.Background(), &dest, func(context.Context) (any, error) {
		return lookupResult{ID: 3, Name: "Alta"}, nil
	}, "priority", "Alta")
	require.NoError(t, err)
	assert.Equal(t, "Alta", dest.Name)
	assert.NoError(t, c.Bump(context.Background()))
}
