package artifact

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewStore(fs, "outputs")
	require.NoError(t, err)
	return store, fs
}

func TestNewStore_CreatesDirectories(t *testing.T) {
	_, fs := newTestStore(t)

	for _, dir := range []string{"images", "models", "videos"} {
		exists, err := afero.DirExists(fs, filepath.Join("outputs", dir))
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestSaveImage(t *testing.T) {
	store, fs := newTestStore(t)

	path, err := store.SaveImage([]byte("image-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, filepath.Join("outputs", "images")))
	assert.True(t, strings.HasSuffix(path, ".png"))

	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), content)
}

func TestSaveModelAndVideo_ShareIDStem(t *testing.T) {
	store, _ := newTestStore(t)

	id := NewArtifactID()
	modelPath, err := store.SaveModel(id, []byte("model-bytes"))
	require.NoError(t, err)
	videoPath, err := store.SaveVideo(id, []byte("video-bytes"))
	require.NoError(t, err)

	assert.Equal(t, id+".glb", filepath.Base(modelPath))
	assert.Equal(t, id+".mp4", filepath.Base(videoPath))
}

func TestSaveImage_UniqueFilenames(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.SaveImage([]byte("a"))
	require.NoError(t, err)
	second, err := store.SaveImage([]byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewArtifactID(t *testing.T) {
	id := NewArtifactID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, NewArtifactID())
}
