package robots

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanFetchHonorsDisallow(t *testing.T) {
	p := &Policy{cache: make(map[string]*RobotsTxt)}
	p.fetch = func(ctx context.Context, robotsURL string) (int, string) {
		return 200, "User-agent: *\nDisallow: /private\n"
	}

	assert.True(t, p.CanFetch(context.Background(), "spider-crawler", "https://example.com/ok"))
	assert.False(t, p.CanFetch(context.Background(), "spider-crawler", "https://example.com/private/page"))
}

func TestCanFetchFailsOpenOnFetchError(t *testing.T) {
	p := &Policy{cache: make(map[string]*RobotsTxt)}
	p.fetch = func(ctx context.Context, robotsURL string) (int, string) {
		return 0, ""
	}

	assert.True(t, p.CanFetch(context.Background(), "spider-crawler", "https://example.com/anything"))
}

func TestCanFetchCachesPerOrigin(t *testing.T) {
	calls := 0
	p := &Policy{cache: make(map[string]*RobotsTxt)}
	p.fetch = func(ctx context.Context, robotsURL string) (int, string) {
		calls++
		return 200, "User-agent: *\nDisallow: /private\n"
	}

	p.CanFetch(context.Background(), "spider-crawler", "https://example.com/a")
	p.CanFetch(context.Background(), "spider-crawler", "https://example.com/b")

	assert.Equal(t, 1, calls)
}
