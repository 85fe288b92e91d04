package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "todo.db"
	DefaultLogName        = "todo.log"
	DefaultSurfaceName    = "surface.toml"

	// EnvConfigPath overrides where the config file lives.
	EnvConfigPath = "SIDEO_CONFIG"
	appDirName    = "sideo"
)

type Keymap struct {
	Quit       string `toml:"quit"`
	Add        string `toml:"add"`
	Up         string `toml:"up"`
	Down       string `toml:"down"`
	SwipeLeft  string `toml:"swipe_left"`
	SwipeRight string `toml:"swipe_right"`
	Important  string `toml:"important"`
	MoveUp     string `toml:"move_up"`
	MoveDown   string `toml:"move_down"`
	Rename     string `toml:"rename"`
	Restore    string `toml:"restore"`
	Purge      string `toml:"purge"`
	Undo       string `toml:"undo"`
	NextTab    string `toml:"next_tab"`
	PrevTab    string `toml:"prev_tab"`
	Confirm    string `toml:"confirm"`
	Cancel     string `toml:"cancel"`
}

type Config struct {
	DBPath       string `toml:"db_path"`
	LogPath      string `toml:"log_path"`
	SurfacePath  string `toml:"surface_path"`
	SurfaceItems int    `toml:"surface_items"`
	// PendingDeleteMS is the undo window for permanent deletes.
	PendingDeleteMS int `toml:"pending_delete_ms"`
	// RefreshSeconds is how often time-windowed views re-evaluate.
	RefreshSeconds int `toml:"refresh_seconds"`
	// SwipeReversed swaps the complete and delete gestures.
	SwipeReversed bool   `toml:"swipe_reversed"`
	Theme         string `toml:"theme"`
	Keys          Keymap `toml:"keys"`
}

func (c Config) PendingDeleteDelay() time.Duration {
	return time.Duration(c.PendingDeleteMS) * time.Millisecond
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// ResolveConfigPath returns $SIDEO_CONFIG if set, else config.toml in the
// user config directory, else config.toml in the working directory.
func ResolveConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDirName, DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing the defaults there first if
// the file does not exist. Relative data paths are resolved against the
// config file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg.resolve(filepath.Dir(path)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg.resolve(filepath.Dir(path)), nil
}

func (c *Config) fillDefaults() {
	d := defaultConfig()
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.SurfaceItems <= 0 {
		c.SurfaceItems = d.SurfaceItems
	}
	if c.PendingDeleteMS <= 0 {
		c.PendingDeleteMS = d.PendingDeleteMS
	}
	if c.RefreshSeconds <= 0 {
		c.RefreshSeconds = d.RefreshSeconds
	}
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	fillKeys(&c.Keys, d.Keys)
}

func fillKeys(k *Keymap, d Keymap) {
	fields := []struct {
		v   *string
		def string
	}{
		{&k.Quit, d.Quit}, {&k.Add, d.Add}, {&k.Up, d.Up}, {&k.Down, d.Down},
		{&k.SwipeLeft, d.SwipeLeft}, {&k.SwipeRight, d.SwipeRight},
		{&k.Important, d.Important}, {&k.MoveUp, d.MoveUp}, {&k.MoveDown, d.MoveDown},
		{&k.Rename, d.Rename}, {&k.Restore, d.Restore}, {&k.Purge, d.Purge},
		{&k.Undo, d.Undo}, {&k.NextTab, d.NextTab}, {&k.PrevTab, d.PrevTab},
		{&k.Confirm, d.Confirm}, {&k.Cancel, d.Cancel},
	}
	for _, f := range fields {
		if *f.v == "" {
			*f.v = f.def
		}
	}
}

func (c Config) resolve(dir string) Config {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.DBPath = abs(c.DBPath)
	c.LogPath = abs(c.LogPath)
	c.SurfacePath = abs(c.SurfacePath)
	return c
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		DBPath:          DefaultDBName,
		LogPath:         DefaultLogName,
		SurfacePath:     DefaultSurfaceName,
		SurfaceItems:    5,
		PendingDeleteMS: 3000,
		RefreshSeconds:  60,
		Theme:           "system",
		Keys: Keymap{
			Quit:       "q",
			Add:        "a",
			Up:         "k",
			Down:       "j",
			SwipeLeft:  "h",
			SwipeRight: "l",
			Important:  "i",
			MoveUp:     "K",
			MoveDown:   "J",
			Rename:     "r",
			Restore:    "R",
			Purge:      "x",
			Undo:       "u",
			NextTab:    "tab",
			PrevTab:    "shift+tab",
			Confirm:    "enter",
			Cancel:     "esc",
		},
	}
}
