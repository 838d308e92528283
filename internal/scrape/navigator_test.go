package scrape

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepRecorder(out *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*out = append(*out, d)
		return nil
	}
}

func TestNavigator_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	site := newFakeSite().serve("https://a.example/", "<html></html>")
	page, err := site.NewPage(context.Background())
	require.NoError(t, err)

	var slept []time.Duration
	nav := NewNavigator()
	nav.Sleep = sleepRecorder(&slept)

	assert.True(t, nav.Navigate(context.Background(), page, "https://a.example/"))
	assert.Equal(t, 1, site.navCount("https://a.example/"))
	assert.Empty(t, slept)
	assert.Equal(t, "https://a.example/", page.URL())
}

func TestNavigator_RecoversFromTransientFailure(t *testing.T) {
	t.Parallel()
	site := newFakeSite().
		serve("https://a.example/", "<html></html>").
		fail("https://a.example/", 1)
	page, _ := site.NewPage(context.Background())

	var slept []time.Duration
	nav := NewNavigator()
	nav.Sleep = sleepRecorder(&slept)

	assert.True(t, nav.Navigate(context.Background(), page, "https://a.example/"))
	assert.Equal(t, 2, site.navCount("https://a.example/"))
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestNavigator_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()
	site := newFakeSite().fail("https://down.example/", -1)
	page, _ := site.NewPage(context.Background())

	var slept []time.Duration
	nav := NewNavigator()
	nav.Sleep = sleepRecorder(&slept)

	assert.False(t, nav.Navigate(context.Background(), page, "https://down.example/"))
	assert.Equal(t, 3, site.navCount("https://down.example/"))
	// Linear backoff: 2s after attempt 1, 4s after attempt 2, none after the last.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestNavigator_CustomAttempts(t *testing.T) {
	t.Parallel()
	site := newFakeSite().fail("https://down.example/", -1)
	page, _ := site.NewPage(context.Background())

	nav := &Navigator{Attempts: 5, Backoff: time.Millisecond, Sleep: noSleep}
	assert.False(t, nav.Navigate(context.Background(), page, "https://down.example/"))
	assert.Equal(t, 5, site.navCount("https://down.example/"))
}

func TestNavigator_CancelledContext(t *testing.T) {
	t.Parallel()
	site := newFakeSite().fail("https://down.example/", -1)
	page, _ := site.NewPage(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, testNavigator().Navigate(ctx, page, "https://down.example/"))
	assert.LessOrEqual(t, site.navCount("https://down.example/"), 1)
}
