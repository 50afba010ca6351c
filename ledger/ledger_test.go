package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestCreateRepo_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	first, err := l.CreateRepo(ctx, Repo{Hoster: "github.com", URL: "https://api.github.com/repos/a/loom", FullName: "a/loom"})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	again, err := l.CreateRepo(ctx, Repo{Hoster: "github.com", URL: "https://api.github.com/repos/a/loom", FullName: "a/loom"})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := l.CreateRepo(ctx, Repo{Hoster: "github.com", URL: "https://api.github.com/repos/a/dryer", FullName: "a/dryer"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestManifests(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	repo, err := l.CreateRepo(ctx, Repo{Hoster: "github.com", URL: "u", FullName: "a/loom"})
	require.NoError(t, err)

	_, err = l.GetManifest(ctx, repo.ID, "abc")
	assert.True(t, errors.Is(err, ErrNotFound))

	want := Manifest{
		RepoID:          repo.ID,
		OriginalName:    "okh.toml",
		SHA:             "abc",
		DownloadURL:     "https://raw.githubusercontent.com/a/loom/main/okh.toml",
		DownloadSuccess: true,
		FilePath:        "/work/github/a____loom____okh.toml/1_0/okh.toml",
		FileFormat:      "toml",
	}
	id, err := l.InsertManifest(ctx, want)
	require.NoError(t, err)
	want.ID = id

	got, err := l.GetManifest(ctx, repo.ID, "abc")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = l.InsertManifest(ctx, want)
	assert.Error(t, err, "repo and sha are unique")
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFile)
	l, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = l.CreateRepo(ctx, Repo{Hoster: "github.com", URL: "u", FullName: "a/b"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	repo, err := reopened.CreateRepo(ctx, Repo{Hoster: "github.com", URL: "u", FullName: "a/b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.ID)
}
