package assets

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/penumbra/engine/assets/loaders"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newCatalog(t *testing.T, root string, events *core.Events) *Catalog {
	t.Helper()
	c, err := NewCatalog(events)
	require.NoError(t, err)
	require.NoError(t, c.Initialize(root))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalogIndexesRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "main.vert.spv"), spirv)
	writeFile(t, filepath.Join(root, "textures", "deep", "stone.png"), []byte{})
	writeFile(t, filepath.Join(root, "models", "plane.obj"), []byte{})
	writeFile(t, filepath.Join(root, "models", "plane.mtl"), []byte{})
	writeFile(t, filepath.Join(root, "scenes", "demo.toml"), []byte{})
	writeFile(t, filepath.Join(root, "README.txt"), []byte{})

	c := newCatalog(t, root, nil)
	assert.Equal(t, 5, c.Len())

	info, ok := c.Lookup("textures/deep/stone.png")
	require.True(t, ok)
	assert.Equal(t, KindTexture, info.Kind)
	assert.Equal(t, filepath.Join(c.Root(), "textures", "deep", "stone.png"), info.Path)

	_, ok = c.Lookup("README.txt")
	assert.False(t, ok)

	models := c.List(KindModel)
	require.Len(t, models, 1)
	assert.Equal(t, "models/plane.obj", models[0].Name)
	assert.Len(t, c.List(KindMaterial), 1)
}

func TestCatalogLoaders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.frag.spv"), spirv)
	writeFile(t, filepath.Join(root, "bad.spv"), []byte("nope"))
	writeFile(t, filepath.Join(root, "stone.png"), []byte{})
	writeFile(t, filepath.Join(root, "demo.toml"), []byte("[camera]\nfov = 60.0\n"))
	writeFile(t, filepath.Join(root, "plane.mtl"), []byte{})

	c := newCatalog(t, root, nil)

	code, err := c.Load("main.frag.spv")
	require.NoError(t, err)
	assert.Equal(t, spirv, code)

	_, err = c.Load("bad.spv")
	assert.ErrorIs(t, err, loaders.ErrNotSPIRV)

	src, err := c.Load("stone.png")
	require.NoError(t, err)
	assert.IsType(t, &loaders.ImageSource{}, src)

	f, err := c.Load("demo.toml")
	require.NoError(t, err)
	require.IsType(t, &scene.File{}, f)
	require.NotNil(t, f.(*scene.File).Camera)
	assert.Equal(t, float32(60), *f.(*scene.File).Camera.Fov)

	_, err = c.Load("plane.mtl")
	assert.ErrorIs(t, err, ErrNoLoader)
	_, err = c.Load("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogTracksChanges(t *testing.T) {
	root := t.TempDir()
	events := core.NewEvents()
	var fired atomic.Int32
	events.Register(core.EVENT_CODE_ASSET_CHANGED, t, func(core.SystemEventCode, interface{}, interface{}, core.EventContext) bool {
		fired.Add(1)
		return true
	})
	c := newCatalog(t, root, events)
	assert.Equal(t, 0, c.Len())

	writeFile(t, filepath.Join(root, "late.png"), []byte{})
	assert.Eventually(t, func() bool {
		_, ok := c.Lookup("late.png")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	time.Sleep(50 * time.Millisecond)
	writeFile(t, filepath.Join(root, "sub", "nested.spv"), spirv)
	assert.Eventually(t, func() bool {
		_, ok := c.Lookup("sub/nested.spv")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "late.png")))
	assert.Eventually(t, func() bool {
		_, ok := c.Lookup("late.png")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Positive(t, fired.Load())
}

func TestCatalogClose(t *testing.T) {
	c, err := NewCatalog(nil)
	require.NoError(t, err)
	require.NoError(t, c.Initialize(t.TempDir()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Initialize(t.TempDir()), ErrClosed)
}

func TestDetermineAssetKind(t *testing.T) {
	assert.Equal(t, KindTexture, determineAssetKind("a/B.JPG"))
	assert.Equal(t, KindTexture, determineAssetKind("x.webp"))
	assert.Equal(t, KindShader, determineAssetKind("s.spv"))
	assert.Equal(t, KindNone, determineAssetKind("shader.vert"))
	assert.Equal(t, "scene", KindScene.String())
}
