//go:build integration

package feed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/feed"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/testutil"
	"crewpulse/pkg/testutil/containers"
)

func TestPageCacheAgainstRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache := feed.NewPageCache(rc.Client, time.Minute, logger, nil)
	require.NotNil(t, cache)

	orgID := id.OrgID(uuid.New())
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	page := &feed.FeedPage{
		Items: []*feed.PostDetails{{
			Post: &feed.Post{
				ID:        id.PostID(uuid.New()),
				OrgID:     orgID,
				Author:    id.EmployeeID(uuid.New()),
				Body:      "quarterly all-hands on Friday",
				CreatedAt: now,
				UpdatedAt: now,
			},
			CommentCount: 2,
			Reactions:    map[feed.ReactionKind]int{feed.ReactionLike: 3},
		}},
		NextCursor: "opaque-cursor",
	}

	testutil.Given(t, "an empty cache", func(t *testing.T) {
		got, ok := cache.Get(ctx, orgID)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	testutil.When(t, "a page is stored", func(t *testing.T) {
		cache.Set(ctx, orgID, page)
	})

	testutil.Then(t, "the page round-trips through redis", func(t *testing.T) {
		got, ok := cache.Get(ctx, orgID)
		require.True(t, ok)
		require.Len(t, got.Items, 1)
		assert.Equal(t, page.Items[0].Post.ID, got.Items[0].Post.ID)
		assert.Equal(t, "quarterly all-hands on Friday", got.Items[0].Body)
		assert.Equal(t, 2, got.Items[0].CommentCount)
		assert.Equal(t, 3, got.Items[0].Reactions[feed.ReactionLike])
		assert.Equal(t, "opaque-cursor", got.NextCursor)
	})

	testutil.Then(t, "other orgs see nothing", func(t *testing.T) {
		_, ok := cache.Get(ctx, id.OrgID(uuid.New()))
		assert.False(t, ok)
	})

	testutil.Then(t, "invalidation evicts the page", func(t *testing.T) {
		cache.Invalidate(ctx, orgID)
		_, ok := cache.Get(ctx, orgID)
		assert.False(t, ok)
	})
}

func TestPageCacheExpiry(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache := feed.NewPageCache(rc.Client, 50*time.Millisecond, logger, nil)
	orgID := id.OrgID(uuid.New())
	cache.Set(ctx, orgID, &feed.FeedPage{})

	require.Eventually(t, func() bool {
		_, ok := cache.Get(ctx, orgID)
		return !ok
	}, 2*time.Second, 25*time.Millisecond)
}
