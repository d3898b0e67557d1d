package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/sitegallery/internal/backend/imageprocessing"
	"github.com/jo-hoe/sitegallery/internal/backend/sitecache"
	"gopkg.in/yaml.v3"
)

var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp", "webp"}

const (
	defaultPort           = 8080
	defaultStorageRoot    = "storage"
	defaultDatabaseType   = "sqlite"
	defaultDatabasePath   = "mapping.db"
	defaultThumbnailWidth = 320
	defaultMaxUploadBytes = 10 << 20
	defaultMaxImagePixels = 40_000_000
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Storage struct {
	Root string `yaml:"root"`
}

type Cache struct {
	Type       string `yaml:"type"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

func (c Cache) toSiteCacheConfig() sitecache.Config {
	return sitecache.Config{
		Type:     c.Type,
		Address:  c.Address,
		Password: c.Password,
		DB:       c.DB,
		TTL:      time.Duration(c.TTLSeconds) * time.Second,
	}
}

type ServiceConfig struct {
	Port               int                             `yaml:"port"`
	Database           Database                        `yaml:"database"`
	Storage            Storage                         `yaml:"storage"`
	Cache              Cache                           `yaml:"cache"`
	AllowedExtensions  []string                        `yaml:"allowedExtensions"`
	VerifyImageContent bool                            `yaml:"verifyImageContent"`
	MaxUploadBytes     int64                           `yaml:"maxUploadBytes"`
	MaxImagePixels     int64                           `yaml:"maxImagePixels"`
	ThumbnailWidth     int                             `yaml:"thumbnailWidth"`
	ThumbnailCommands  []imageprocessing.CommandConfig `yaml:"thumbnailCommands"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults()
	return config
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Database.Type == "" {
		c.Database.Type = defaultDatabaseType
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = defaultDatabasePath
	}
	if c.Storage.Root == "" {
		c.Storage.Root = defaultStorageRoot
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "none"
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	for i, ext := range c.AllowedExtensions {
		c.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.MaxImagePixels == 0 {
		c.MaxImagePixels = defaultMaxImagePixels
	}
	if c.ThumbnailWidth == 0 {
		c.ThumbnailWidth = defaultThumbnailWidth
	}
	if len(c.ThumbnailCommands) == 0 {
		c.ThumbnailCommands = []imageprocessing.CommandConfig{
			{Name: "PngConverterCommand"},
			{Name: "ThumbnailCommand", Params: map[string]any{"width": c.ThumbnailWidth}},
		}
	}
}

// Validate checks the configuration after defaults have been applied
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("maxUploadBytes must not be negative, got %d", c.MaxUploadBytes)
	}
	if c.MaxImagePixels < 0 {
		return fmt.Errorf("maxImagePixels must not be negative, got %d", c.MaxImagePixels)
	}
	if c.ThumbnailWidth < 0 {
		return fmt.Errorf("thumbnailWidth must be positive, got %d", c.ThumbnailWidth)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache ttlSeconds must not be negative, got %d", c.Cache.TTLSeconds)
	}
	switch c.Cache.Type {
	case "none":
	case "redis":
		if c.Cache.Address == "" {
			return fmt.Errorf("cache type redis requires an address")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	for i, ext := range c.AllowedExtensions {
		if ext == "" || strings.ContainsAny(ext, `./\`) {
			return fmt.Errorf("allowed extension at index %d is invalid: %q", i, ext)
		}
	}
	return validateCommands(c.ThumbnailCommands)
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []imageprocessing.CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !imageprocessing.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command %s at index %d, available: %s",
				cmd.Name, i, strings.Join(imageprocessing.DefaultRegistry.GetRegisteredNames(), ", "))
		}
	}

	return nil
}
