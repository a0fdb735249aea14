package uploader

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

type fakeUploader struct {
	failNames map[string]bool
	calls     []Record
}

func (f *fakeUploader) Upload(_ context.Context, rec Record) error {
	f.calls = append(f.calls, rec)
	if f.failNames[rec.Name] {
		return xerrors.Errorf("simulated network error")
	}
	return nil
}

func testConfig(root string, splits []string) *Config {
	return &Config{
		APIKey:        "k",
		WorkspaceID:   "w",
		ProjectID:     "p",
		DatasetPath:   root,
		Splits:        splits,
		ProgressEvery: 10,
	}
}

func TestRunSummary(t *testing.T) {
	root := fixtureTree(t)
	fake := &fakeUploader{failNames: map[string]bool{"b.jpg": true}}

	up := New(testConfig(root, []string{"train", "val"}), fake, nil)
	summary, err := up.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Attempted: 3, Succeeded: 2, Failed: 1}, summary)
	assert.Len(t, fake.calls, 3)
	// the descriptor must exist before the loop finished
	assert.FileExists(t, filepath.Join(root, MetadataName))
}

func TestRunMissingRoot(t *testing.T) {
	fake := &fakeUploader{}
	cfg := testConfig(filepath.Join(t.TempDir(), "nope"), DefaultSplits)

	up := New(cfg, fake, nil)
	summary, err := up.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Empty(t, fake.calls, "no upload may be attempted on a bad root")
	assert.Equal(t, Summary{}, summary)
}

func TestRunEmptyDataset(t *testing.T) {
	root := t.TempDir()
	for _, split := range []string{"train", "val"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, split), 0o755))
	}
	fake := &fakeUploader{}
	up := New(testConfig(root, []string{"train", "val"}), fake, nil)
	summary, err := up.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.NoFileExists(t, filepath.Join(root, MetadataName))
}

func TestRunCanceled(t *testing.T) {
	root := fixtureTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeUploader{}
	up := New(testConfig(root, []string{"train", "val"}), fake, nil)
	_, err := up.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestRunAllFailures(t *testing.T) {
	root := fixtureTree(t)
	fake := &fakeUploader{failNames: map[string]bool{"a.jpg": true, "b.jpg": true, "c.jpg": true}}

	up := New(testConfig(root, []string{"train", "val"}), fake, nil)
	summary, err := up.Run(context.Background())
	require.NoError(t, err, "per-image failures never fail the run")
	assert.Equal(t, Summary{Attempted: 3, Succeeded: 0, Failed: 3}, summary)
}

func TestCSVCallback(t *testing.T) {
	dir := t.TempDir()
	cb := CSVCallback(dir)
	cb.OnSuccess(Record{Name: "a.jpg", Split: "train", Class: "WithMask"})
	cb.OnError(Record{Name: "b.jpg", Split: "train", Class: "WithoutMask"}, xerrors.Errorf("boom"))

	f, err := os.Open(filepath.Join(dir, "upload-manifest.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "split", "class", "status", "detail"}, rows[0])
	assert.Equal(t, []string{"a.jpg", "train", "WithMask", "ok", ""}, rows[1])
	assert.Equal(t, []string{"b.jpg", "train", "WithoutMask", "failed", "boom"}, rows[2])
}
