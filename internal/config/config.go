package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const appName = "pixiworld"

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	Feed      FeedConfig      `toml:"feed"`
	Undo      UndoConfig      `toml:"undo"`
	Profile   ProfileConfig   `toml:"profile"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Log       LogConfig       `toml:"log"`
}

// StorageConfig names the database file and the slot keys inside it.
type StorageConfig struct {
	DBPath          string `toml:"db_path"`
	FeedKey         string `toml:"feed_key"`
	LegacyFeedKey   string `toml:"legacy_feed_key"`
	FriendIDsKey    string `toml:"friend_ids_key"`
	FriendsCountKey string `toml:"friends_count_key"`
}

type FeedConfig struct {
	DefaultAuthor string `toml:"default_author"`
	DefaultAvatar string `toml:"default_avatar"`
	SeedDemo      bool   `toml:"seed_demo"`
}

type UndoConfig struct {
	PostWindowSeconds   int `toml:"post_window_seconds"`
	FriendWindowSeconds int `toml:"friend_window_seconds"`
}

type ProfileConfig struct {
	MaxNameLength int `toml:"max_name_length"`
	MaxBioLength  int `toml:"max_bio_length"`
}

type ReconcileConfig struct {
	// Cron schedule for the watch daemon, e.g. "*/5 * * * *"
	Schedule string `toml:"schedule"`
	Timezone string `toml:"timezone"`
}

type LogConfig struct {
	Level string `toml:"level"`
	Color bool   `toml:"color"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			FeedKey:         "pixiworld:feed",
			LegacyFeedKey:   "feedData",
			FriendIDsKey:    "pixiworld:postFriends",
			FriendsCountKey: "pixiworld:friendsCount",
		},
		Feed: FeedConfig{
			DefaultAuthor: "You",
			DefaultAvatar: "img/avatars/avatar1.png",
			SeedDemo:      true,
		},
		Undo: UndoConfig{
			PostWindowSeconds:   7,
			FriendWindowSeconds: 8,
		},
		Profile: ProfileConfig{
			MaxNameLength: 20,
			MaxBioLength:  160,
		},
		Reconcile: ReconcileConfig{
			Schedule: "*/5 * * * *",
			Timezone: "Local",
		},
		Log: LogConfig{
			Level: "info",
			Color: true,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the directory holding the local database.
// On Linux this is ~/.local/share/pixiworld/
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DefaultDBPath is used when storage.db_path is left empty.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "pixiworld.db")
}

// Load reads config from disk, then applies .env and environment overrides.
func Load() (*Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile reads config from the given path on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrInit loads the config file, writing the defaults first when there
// is none. created reports whether a new file was written. On any other
// error the returned config holds the defaults.
func LoadOrInit() (cfg *Config, created bool, err error) {
	cfg, err = Load()
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Default().WithEnv(), false, err
	}
	cfg = Default()
	if err := cfg.Save(); err != nil {
		return cfg.WithEnv(), false, err
	}
	return cfg.WithEnv(), true, nil
}

// applyEnv overlays PIXI_* variables. A .env file in the working directory
// is loaded first if present; a missing file is not an error.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("PIXI_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("PIXI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PIXI_LOG_COLOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.Color = b
		}
	}
	if v := os.Getenv("PIXI_SEED_DEMO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Feed.SeedDemo = b
		}
	}
}

// WithEnv returns the config after applying environment overrides. Used on
// first run, when there is no file to load yet.
func (c *Config) WithEnv() *Config {
	c.applyEnv()
	return c
}

// ResolvedDBPath returns the configured database path or the default one.
func (c *Config) ResolvedDBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return DefaultDBPath()
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveFile(ConfigPath())
}

// SaveFile writes config to the given path, creating parent directories.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
