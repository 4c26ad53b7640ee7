// Package assets indexes the files under an assets root and keeps the index
// current while the engine runs.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/penumbra/engine/assets/loaders"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/scene"
)

type Kind int

const (
	KindNone Kind = iota
	KindTexture
	KindShader
	KindModel
	KindMaterial
	KindScene
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindShader:
		return "shader"
	case KindModel:
		return "model"
	case KindMaterial:
		return "material"
	case KindScene:
		return "scene"
	}
	return "none"
}

var (
	ErrClosed   = errors.New("asset catalog closed")
	ErrNotFound = errors.New("asset not found")
	ErrNoLoader = errors.New("no loader for asset kind")
)

// Loader turns an indexed file into its decoded form.
type Loader interface {
	Load(path string) (any, error)
}

type LoaderFunc func(path string) (any, error)

func (f LoaderFunc) Load(path string) (any, error) { return f(path) }

type AssetInfo struct {
	// Name is the slash separated path relative to the root.
	Name     string
	Path     string
	Kind     Kind
	Modified time.Time
}

type Catalog struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[Kind]Loader
	events  *core.Events

	mutex sync.RWMutex

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopped  sync.WaitGroup
	isClosed bool
}

// NewCatalog creates an unstarted catalog. Changes are fired on events as
// EVENT_CODE_ASSET_CHANGED when events is not nil.
func NewCatalog(events *core.Events) (*Catalog, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[Kind]Loader),
		events:  events,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	c.RegisterLoader(KindTexture, LoaderFunc(func(path string) (any, error) {
		return loaders.NewImageSource(path), nil
	}))
	c.RegisterLoader(KindShader, LoaderFunc(func(path string) (any, error) {
		return loaders.ReadSPIRV(path)
	}))
	c.RegisterLoader(KindModel, LoaderFunc(func(path string) (any, error) {
		return scene.LoadOBJ(path)
	}))
	c.RegisterLoader(KindScene, LoaderFunc(func(path string) (any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return scene.DecodeFile(f)
	}))
	return c, nil
}

// Initialize indexes root recursively and starts watching it.
func (c *Catalog) Initialize(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	c.mutex.Lock()
	if c.isClosed {
		c.mutex.Unlock()
		return ErrClosed
	}
	c.root = abs
	c.mutex.Unlock()

	if err := c.watchRecursive(abs); err != nil {
		return err
	}
	c.stopped.Add(1)
	go c.start()
	core.LogInfo("asset catalog indexed %d files under %s", c.Len(), abs)
	return nil
}

func (c *Catalog) Root() string { return c.root }

func (c *Catalog) RegisterLoader(kind Kind, loader Loader) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.loaders[kind] = loader
}

func (c *Catalog) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.assets)
}

// Lookup finds an asset by its name relative to the root.
func (c *Catalog) Lookup(name string) (AssetInfo, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	info, ok := c.assets[filepath.ToSlash(filepath.Clean(name))]
	return info, ok
}

// List returns the assets of kind sorted by name.
func (c *Catalog) List(kind Kind) []AssetInfo {
	c.mutex.RLock()
	out := make([]AssetInfo, 0, len(c.assets))
	for _, info := range c.assets {
		if info.Kind == kind {
			out = append(out, info)
		}
	}
	c.mutex.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load decodes the named asset with the loader registered for its kind.
func (c *Catalog) Load(name string) (any, error) {
	info, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	c.mutex.RLock()
	loader, ok := c.loaders[info.Kind]
	c.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoLoader, name, info.Kind)
	}
	return loader.Load(info.Path)
}

// Close stops the watcher goroutine. The index stays readable.
func (c *Catalog) Close() error {
	c.mutex.Lock()
	if c.isClosed {
		c.mutex.Unlock()
		return nil
	}
	c.isClosed = true
	c.mutex.Unlock()

	close(c.done)
	c.stopped.Wait()
	return c.watcher.Close()
}

func (c *Catalog) start() {
	defer c.stopped.Done()
	for {
		select {
		case e, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handle(e)

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-c.done:
			return
		}
	}
}

func (c *Catalog) handle(e fsnotify.Event) {
	switch {
	case e.Has(fsnotify.Create):
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := c.watchRecursive(e.Name); err != nil {
				core.LogWarn("asset watcher: %s", err)
			}
		} else {
			c.handleFileEvent(e.Name)
		}
	case e.Has(fsnotify.Write):
		c.handleFileEvent(e.Name)
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		// a removed path can't be stat'ed, so treat it as a possible directory
		c.removeAsset(e.Name)
		_ = c.watcher.Remove(e.Name)
	default:
		return
	}
	if c.events != nil {
		c.events.Fire(core.EVENT_CODE_ASSET_CHANGED, c, core.EventContext{Path: e.Name})
	}
}

// watchRecursive watches every directory under path and indexes its files.
// Files created between the walk and the watch being added are missed.
func (c *Catalog) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return c.watcher.Add(walkPath)
		}
		c.handleFileEvent(walkPath)
		return nil
	})
}

func (c *Catalog) name(path string) (string, bool) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (c *Catalog) handleFileEvent(path string) {
	kind := determineAssetKind(path)
	if kind == KindNone {
		return
	}
	name, ok := c.name(path)
	if !ok {
		return
	}
	info := AssetInfo{Name: name, Path: path, Kind: kind}
	if s, err := os.Stat(path); err == nil {
		info.Modified = s.ModTime()
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.assets[name] = info
}

// removeAsset drops path and, if it was a directory, everything below it.
func (c *Catalog) removeAsset(path string) {
	name, ok := c.name(path)
	if !ok {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.assets, name)
	prefix := name + "/"
	for n := range c.assets {
		if strings.HasPrefix(n, prefix) {
			delete(c.assets, n)
		}
	}
}

func determineAssetKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return KindTexture
	case ".spv":
		return KindShader
	case ".obj":
		return KindModel
	case ".mtl":
		return KindMaterial
	case ".toml":
		return KindScene
	default:
		return KindNone
	}
}
