package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr        string
	UploadLimitMB   int
	RateLimit       int // загрузок в минуту с одного IP
	TelegramToken   string
	DetectorKind    string // gocv | remote
	ModelPath       string
	InputSize       int
	NMSThreshold    float64
	RemoteURL       string
	DetectorTimeout time.Duration
	FontPath        string
	StorageKind     string // memory | sqlite
	SQLitePath      string
	LogLevel        string
	LogPretty       bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.upload_limit_mb", 20)
	v.SetDefault("http.rate_limit", 30)
	v.SetDefault("telegram.token", "")
	v.SetDefault("detector.kind", "gocv")
	v.SetDefault("detector.model_path", "runs/detect/train10/weights/best.onnx")
	v.SetDefault("detector.input_size", 640)
	v.SetDefault("detector.nms_threshold", 0.7)
	v.SetDefault("detector.remote_url", "http://localhost:8000")
	v.SetDefault("detector.timeout", "60s")
	v.SetDefault("overlay.font_path", "")
	v.SetDefault("storage.kind", "memory")
	v.SetDefault("storage.sqlite_path", "tube-counter.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load читает .env и переменные окружения (HTTP_ADDR, DETECTOR_KIND, ...).
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		HTTPAddr:        v.GetString("http.addr"),
		UploadLimitMB:   v.GetInt("http.upload_limit_mb"),
		RateLimit:       v.GetInt("http.rate_limit"),
		TelegramToken:   v.GetString("telegram.token"),
		DetectorKind:    strings.ToLower(v.GetString("detector.kind")),
		ModelPath:       v.GetString("detector.model_path"),
		InputSize:       v.GetInt("detector.input_size"),
		NMSThreshold:    v.GetFloat64("detector.nms_threshold"),
		RemoteURL:       v.GetString("detector.remote_url"),
		DetectorTimeout: v.GetDuration("detector.timeout"),
		FontPath:        v.GetString("overlay.font_path"),
		StorageKind:     strings.ToLower(v.GetString("storage.kind")),
		SQLitePath:      v.GetString("storage.sqlite_path"),
		LogLevel:        v.GetString("log.level"),
		LogPretty:       v.GetBool("log.pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить молча.
func (c *Config) Validate() error {
	switch c.DetectorKind {
	case "gocv", "remote":
	default:
		return fmt.Errorf("unknown detector kind %q, expected gocv or remote", c.DetectorKind)
	}
	switch c.StorageKind {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage kind %q, expected memory or sqlite", c.StorageKind)
	}
	if c.UploadLimitMB <= 0 {
		return fmt.Errorf("http.upload_limit_mb must be positive, got %d", c.UploadLimitMB)
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("detector.input_size must be positive, got %d", c.InputSize)
	}
	return nil
}
