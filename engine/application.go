package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/penumbra/engine/core"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position.
	X uint32 `toml:"x"`
	Y uint32 `toml:"y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight int        `toml:"frames_in_flight"`
	MSAA           bool       `toml:"msaa"`
	Validation     bool       `toml:"validation"`
	VSync          bool       `toml:"vsync"`
	DiscreteGPU    bool       `toml:"discrete_gpu"`
	ShadowMapSize  uint32     `toml:"shadow_map_size"`
	FrameGuard     bool       `toml:"frame_guard"`
	ClearColor     [4]float32 `toml:"clear_color"`
	// ResizeTextures resamples textures to the texture array size instead
	// of rejecting them.
	ResizeTextures bool `toml:"resize_textures"`
}

type PathsConfig struct {
	Assets  string `toml:"assets"`
	Shaders string `toml:"shaders"`
	// Scene is relative to Assets. Empty starts with an empty scene.
	Scene string `toml:"scene"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Paths    PathsConfig    `toml:"paths"`
	LogLevel string         `toml:"log_level"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Window: WindowConfig{
			Name:   "Penumbra",
			X:      100,
			Y:      100,
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			MSAA:           true,
			ShadowMapSize:  2048,
			ClearColor:     [4]float32{0, 0, 0, 1},
		},
		Paths: PathsConfig{
			Assets:  "assets",
			Shaders: "shaders",
		},
		LogLevel: "info",
	}
}

// LoadConfig overlays the TOML file at path on DefaultConfig. A missing file
// yields the defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogInfo("no config at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%s: %w: %s", path, ErrInvalidConfig, strict.String())
		}
		return nil, fmt.Errorf("%s: %w: %w", path, ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FramesInFlight < 1 {
		return fmt.Errorf("%w: frames_in_flight must be at least 1", ErrInvalidConfig)
	}
	if s := c.Renderer.ShadowMapSize; s == 0 || s&(s-1) != 0 {
		return fmt.Errorf("%w: shadow_map_size %d is not a power of two", ErrInvalidConfig, s)
	}
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
