package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listings = []string{
	"Event: Rooftop Jazz\nLocation: Brooklyn\nCost: $25",
	"Event: Pottery Wheel Basics\nLocation: Queens\nCost: $40",
	"Venue guide: parking near Brooklyn bridge",
	"Event: Late Jazz Jam\nLocation: Harlem\nCost: Free",
}

func TestMemoryStoreRanksByTermHits(t *testing.T) {
	s := NewMemoryStore(listings...)

	out, err := s.Search(context.Background(), "jazz in brooklyn", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{listings[0], listings[2]}, out)
}

func TestMemoryStoreReturnsZeroScoreBlobsInOrder(t *testing.T) {
	s := NewMemoryStore(listings...)

	out, err := s.Search(context.Background(), "karaoke", 10)
	require.NoError(t, err)
	assert.Equal(t, listings, out)
}

func TestMemoryStoreDeterministic(t *testing.T) {
	s := NewMemoryStore(listings...)
	a, _ := s.Search(context.Background(), "event jazz", 3)
	b, _ := s.Search(context.Background(), "event jazz", 3)
	assert.Equal(t, a, b)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore(listings...).Search(ctx, "jazz", 2)
	assert.ErrorIs(t, err, ErrSearch)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	content := "Event: A\nCost: Free\n\n\nEvent: B\r\nCost: $5\r\n\r\nnotes about venues\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week1.txt"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("Event: C"), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Event: A\nCost: Free", "Event: B\nCost: $5", "notes about venues"}, s.Blobs())
}
