package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Camera     CameraConfig     `mapstructure:"camera"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Display    DisplayConfig    `mapstructure:"display"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
}

type CameraConfig struct {
	// Device is a camera index ("0") or a stream URL / video file path.
	Device string `mapstructure:"device"`
	Model  string `mapstructure:"model"`
}

type DetectorConfig struct {
	CascadePath  string  `mapstructure:"cascade_path"`
	ScaleFactor  float64 `mapstructure:"scale_factor"`
	MinNeighbors int     `mapstructure:"min_neighbors"`
}

type NormalizerConfig struct {
	Diameter   int     `mapstructure:"diameter"`
	SigmaColor float64 `mapstructure:"sigma_color"`
	SigmaSpace float64 `mapstructure:"sigma_space"`
	BlockSize  int     `mapstructure:"block_size"`
	Offset     float64 `mapstructure:"offset"`
	KernelSize int     `mapstructure:"kernel_size"`
}

type OCRConfig struct {
	Language    string `mapstructure:"language"`
	PageSegMode int    `mapstructure:"page_seg_mode"`
	Whitelist   string `mapstructure:"whitelist"`
}

type StorageConfig struct {
	CaptureDir string `mapstructure:"capture_dir"`
	LogPath    string `mapstructure:"log_path"`
	ImageExt   string `mapstructure:"image_ext"`
}

type DisplayConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Window     string `mapstructure:"window"`
	CropWindow string `mapstructure:"crop_window"`
	KeyWaitMS  int    `mapstructure:"key_wait_ms"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.device", "0")
	v.SetDefault("camera.model", "webcam")

	v.SetDefault("detector.cascade_path", "haarcascade_russian_plate_number.xml")
	v.SetDefault("detector.scale_factor", 1.1)
	v.SetDefault("detector.min_neighbors", 10)

	v.SetDefault("normalizer.diameter", 9)
	v.SetDefault("normalizer.sigma_color", 75.0)
	v.SetDefault("normalizer.sigma_space", 75.0)
	v.SetDefault("normalizer.block_size", 11)
	v.SetDefault("normalizer.offset", 2.0)
	v.SetDefault("normalizer.kernel_size", 3)

	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.page_seg_mode", 8)
	v.SetDefault("ocr.whitelist", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	v.SetDefault("storage.capture_dir", "car")
	v.SetDefault("storage.log_path", "plate_log.txt")
	v.SetDefault("storage.image_ext", ".png")

	v.SetDefault("display.enabled", true)
	v.SetDefault("display.window", "License Plate Detection")
	v.SetDefault("display.crop_window", "Cropped Plate")
	v.SetDefault("display.key_wait_ms", 1)

	v.SetDefault("http.addr", "")
	v.SetDefault("http.cors_origins", []string{"*"})

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads configuration from defaults, an optional config file, a .env
// file and ANPR_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ANPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Detector.CascadePath) == "":
		return fmt.Errorf("%w: detector.cascade_path is required", ErrInvalidConfig)
	case c.Detector.ScaleFactor <= 1:
		return fmt.Errorf("%w: detector.scale_factor must be greater than 1", ErrInvalidConfig)
	case c.Detector.MinNeighbors < 0:
		return fmt.Errorf("%w: detector.min_neighbors must not be negative", ErrInvalidConfig)
	case c.Normalizer.Diameter < 1:
		return fmt.Errorf("%w: normalizer.diameter must be positive", ErrInvalidConfig)
	case c.Normalizer.BlockSize < 3 || c.Normalizer.BlockSize%2 == 0:
		return fmt.Errorf("%w: normalizer.block_size must be odd and at least 3", ErrInvalidConfig)
	case c.Normalizer.KernelSize < 1:
		return fmt.Errorf("%w: normalizer.kernel_size must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.Storage.CaptureDir) == "":
		return fmt.Errorf("%w: storage.capture_dir is required", ErrInvalidConfig)
	case strings.TrimSpace(c.Storage.LogPath) == "":
		return fmt.Errorf("%w: storage.log_path is required", ErrInvalidConfig)
	case c.Display.Enabled && c.Display.KeyWaitMS < 1:
		return fmt.Errorf("%w: display.key_wait_ms must be at least 1", ErrInvalidConfig)
	}
	return nil
}
