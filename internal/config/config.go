package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	PhotoAPI  PhotoAPIConfig  `yaml:"photo_api"`
	Images    ImagesConfig    `yaml:"images"`
	Grid      GridConfig      `yaml:"grid"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	Wallpaper WallpaperConfig `yaml:"wallpaper"`
	Session   SessionConfig   `yaml:"session"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PhotoAPIConfig holds the remote photo API settings
type PhotoAPIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	AccessKey string        `yaml:"access_key"`
	PageSize  int           `yaml:"page_size"`
	Timeout   time.Duration `yaml:"timeout"`
	Debug     bool          `yaml:"debug"` // log request and response bodies
}

// ImagesConfig holds image loader settings
type ImagesConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// GridConfig holds layout settings for the photo grid
type GridConfig struct {
	ScreenWidth int `yaml:"screen_width"`
	Padding     int `yaml:"padding"`
}

// ContainerWidth is the card width: the screen width minus padding on both sides
func (c GridConfig) ContainerWidth() int {
	return c.ScreenWidth - 2*c.Padding
}

// StoreConfig holds shared image store configuration
type StoreConfig struct {
	Driver      string        `yaml:"driver"` // fs or s3
	PendingFlag bool          `yaml:"pending_flag"`
	FS          FSStoreConfig `yaml:"fs"`
}

// FSStoreConfig holds settings of the local directory store
type FSStoreConfig struct {
	Dir               string `yaml:"dir"`
	RequirePermission bool   `yaml:"require_permission"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// WallpaperConfig holds the wallpaper command settings
type WallpaperConfig struct {
	Command  []string      `yaml:"command"` // {path} is replaced by the image file
	Allowed  bool          `yaml:"allowed"`
	CacheDir string        `yaml:"cache_dir"`
	OfferTTL time.Duration `yaml:"offer_ttl"`
}

// SessionConfig holds screen session settings
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every optional field filled in
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		PhotoAPI: PhotoAPIConfig{
			BaseURL:  "https://api.unsplash.com",
			PageSize: 30,
			Timeout:  30 * time.Second,
		},
		Images: ImagesConfig{
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
			Timeout:   60 * time.Second,
			MaxBytes:  50 << 20,
		},
		Grid:    GridConfig{ScreenWidth: 1080, Padding: 32},
		Store:   StoreConfig{Driver: "fs", PendingFlag: true, FS: FSStoreConfig{Dir: "./pictures"}},
		Session: SessionConfig{TTL: 24 * time.Hour},
		Log:     LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// applyEnv overrides secrets from PHOTO_* environment variables
func (c *Config) applyEnv() {
	c.PhotoAPI.AccessKey = getEnv("PHOTO_API_ACCESS_KEY", c.PhotoAPI.AccessKey)
	c.JWT.Secret = getEnv("PHOTO_JWT_SECRET", c.JWT.Secret)
	c.Database.Password = getEnv("PHOTO_DB_PASSWORD", c.Database.Password)
	c.AWS.AccessKey = getEnv("PHOTO_AWS_ACCESS_KEY", c.AWS.AccessKey)
	c.AWS.SecretKey = getEnv("PHOTO_AWS_SECRET_KEY", c.AWS.SecretKey)
	c.Log.Level = getEnv("PHOTO_LOG_LEVEL", c.Log.Level)
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.PhotoAPI.AccessKey == "" {
		return fmt.Errorf("photo_api.access_key is required")
	}
	if c.PhotoAPI.PageSize <= 0 {
		return fmt.Errorf("photo_api.page_size must be positive")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Images.MaxBytes <= 0 {
		return fmt.Errorf("images.max_bytes must be positive")
	}
	if c.Grid.ScreenWidth <= 2*c.Grid.Padding {
		return fmt.Errorf("grid.screen_width must be larger than twice grid.padding")
	}

	switch c.Store.Driver {
	case "fs":
		if c.Store.FS.Dir == "" {
			return fmt.Errorf("store.fs.dir is required for the fs driver")
		}
	case "s3":
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("aws.s3_bucket is required for the s3 driver")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database.dbname is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q, expected fs or s3", c.Store.Driver)
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the connection URL in the form golang-migrate expects
func (c *DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}
