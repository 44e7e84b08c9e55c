package selftest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHarnessRunCompletes(t *testing.T) {
	t.Parallel()

	h := New(zap.NewNop())
	require.NoError(t, h.Run(context.Background()))
}

// TestHarnessIdempotent runs the selftest twice; a healthy build passes
// both times and never touches the working directory.
func TestHarnessIdempotent(t *testing.T) {
	workDir := t.TempDir()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	h := New(zap.NewNop())
	require.NoError(t, h.Run(context.Background()))
	require.NoError(t, h.Run(context.Background()))

	// The real state path and output dir must not have been created.
	_, err = os.Stat(filepath.Join(workDir, "data"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(workDir, "public"))
	require.True(t, os.IsNotExist(err))
}

func TestFixtureFetcherServesEmbeddedDocument(t *testing.T) {
	t.Parallel()

	body, err := fixtures.ReadFile("fixtures/baseline.html")
	require.NoError(t, err)

	f := fixtureFetcher{body: body}
	page, err := f.Fetch(context.Background(), fixtureURL)
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Contains(t, string(page.Body), "Price: $10")
	require.Contains(t, page.ContentType(), "text/html")
}
