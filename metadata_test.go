package uploader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteMetadata(t *testing.T) {
	root := t.TempDir()
	mdPath, err := WriteMetadata(root, []string{"train", "val"}, []string{"WithMask", "WithoutMask"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, MetadataName), mdPath)

	bs, err := os.ReadFile(mdPath)
	require.NoError(t, err)

	var md Metadata
	require.NoError(t, yaml.Unmarshal(bs, &md))
	assert.True(t, filepath.IsAbs(md.Path))
	assert.Equal(t, []string{"train", "val"}, md.Splits)
	assert.Equal(t, 2, md.ClassCount)
	assert.Equal(t, []string{"WithMask", "WithoutMask"}, md.Names)
	assert.Equal(t, "classification", md.DatasetType)
}

func TestWriteMetadataOverwrites(t *testing.T) {
	root := t.TempDir()
	_, err := WriteMetadata(root, []string{"train"}, []string{"A"})
	require.NoError(t, err)
	mdPath, err := WriteMetadata(root, []string{"train"}, []string{"A", "B"})
	require.NoError(t, err)

	bs, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	var md Metadata
	require.NoError(t, yaml.Unmarshal(bs, &md))
	assert.Equal(t, 2, md.ClassCount)
}
