package signals

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePriceFile(t *testing.T, dir, symbol, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(content), 0o644))
}

func TestFileFeedReadsWindow(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "SXLK", "date,close\n2026-01-05,100.5\n2026-02-02,103.0\n2026-03-02,108.25\n")

	feed := NewFileFeed(dir)
	closes, err := feed.Closes(context.Background(), "SXLK",
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, closes, 2)
	assert.Equal(t, 103.0, closes[0].Price)
	assert.Equal(t, 108.25, closes[1].Price)
}

func TestFileFeedMissingSymbol(t *testing.T) {
	feed := NewFileFeed(t.TempDir())
	_, err := feed.Closes(context.Background(), "SXLZ", time.Time{}, time.Now())
	require.Error(t, err)
}

func TestFileFeedRejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "SXLK", "date,close\nnot-a-date,100\n")

	feed := NewFileFeed(dir)
	_, err := feed.Closes(context.Background(), "SXLK", time.Time{}, time.Now())
	require.Error(t, err)
}
