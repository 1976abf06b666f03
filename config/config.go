package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

const (
	DefaultUploadsPrefix     = "uploads"
	DefaultGalleryCollection = "galleries"
)

const (
	defaultImageQueueSize        = 200
	defaultNumImageWorkers       = 4
	defaultMasterMaxDimension    = 2048
	defaultThumbnailMaxDimension = 1000
	defaultLargeThumbDimension   = 1600
	defaultExifToolTimeout       = 15 * time.Second
	defaultJobTimeout            = 120 * time.Second
	defaultJobMaxAttempts        = 5
	defaultPrewarmRate           = 10
	defaultJWTExpiration         = 24 * time.Hour
	defaultReminderLeadDays      = 7
	defaultSMTPPort              = 587
)

type Config struct {
	Environment string
	Port        string

	// external base URL of the API, used in links sent by email
	BaseURL string

	// database
	DatabaseDriver string // sqlite or postgres
	DatabaseDSN    string

	// per-job scratch directories are created below this root
	StagingRoot string

	// local disk: uploads always land here, durable assets too when DurableDisk is "local"
	LocalStoragePath string
	LocalPublicURL   string

	DurableDisk       string // local or s3
	GalleryCollection string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	S3UsePathStyle bool

	// derivative bounds (longest edge, px)
	MasterMaxDimension    int
	ThumbnailMaxDimension int
	LargeThumbDimension   int

	ExifToolPath    string
	ExifToolTimeout time.Duration

	// worker settings
	ImageQueueSize  int
	NumImageWorkers int
	JobTimeout      time.Duration
	JobMaxAttempts  int

	// image proxy warmed after processing; empty disables prewarming
	ImageProxyURL      string
	PrewarmRatePerSec  int
	SessionSecret      string
	JWTSecret          string
	JWTExpiration      time.Duration
	CORSAllowedOrigins []string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// cron expression for the expiration sweep
	SweepSchedule    string
	ReminderLeadDays int
}

// IsProduction reports whether production-only behaviour (cache prewarming) is enabled.
func (c Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %t. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	storage := getEnvOrDefault("LOCAL_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for local storage '%s': %w", storage, err)
	}

	staging := getEnvOrDefault("STAGING_ROOT", filepath.Join(os.TempDir(), "studio-staging"))
	absStaging, err := filepath.Abs(staging)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for staging root '%s': %w", staging, err)
	}

	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "postgres" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER '%s'", driver)
	}

	durable := strings.ToLower(getEnvOrDefault("DURABLE_DISK", "local"))
	if durable != "local" && durable != "s3" {
		return Config{}, fmt.Errorf("unsupported DURABLE_DISK '%s'", durable)
	}

	cfg := Config{
		Environment:           getEnvOrDefault("APP_ENV", EnvironmentDevelopment),
		Port:                  getEnvOrDefault("PORT", "8080"),
		BaseURL:               strings.TrimRight(getEnvOrDefault("APP_BASE_URL", "http://localhost:8080"), "/"),
		DatabaseDriver:        driver,
		DatabaseDSN:           getEnvOrDefault("DATABASE_DSN", "studio.db"),
		StagingRoot:           absStaging,
		LocalStoragePath:      absStorage,
		LocalPublicURL:        strings.TrimRight(getEnvOrDefault("LOCAL_PUBLIC_URL", "/media"), "/"),
		DurableDisk:           durable,
		GalleryCollection:     getEnvOrDefault("GALLERY_COLLECTION", DefaultGalleryCollection),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		S3Region:              getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:            os.Getenv("S3_ENDPOINT"),
		S3AccessKey:           os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("S3_SECRET_KEY"),
		S3PublicURL:           strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),
		S3UsePathStyle:        getEnvBoolOrDefault("S3_USE_PATH_STYLE", false),
		MasterMaxDimension:    getEnvIntOrDefault("MASTER_MAX_DIMENSION", defaultMasterMaxDimension),
		ThumbnailMaxDimension: getEnvIntOrDefault("THUMBNAIL_MAX_DIMENSION", defaultThumbnailMaxDimension),
		LargeThumbDimension:   getEnvIntOrDefault("LARGE_THUMBNAIL_DIMENSION", defaultLargeThumbDimension),
		ExifToolPath:          getEnvOrDefault("EXIFTOOL_PATH", "exiftool"),
		ExifToolTimeout:       getEnvDurationOrDefault("EXIFTOOL_TIMEOUT", defaultExifToolTimeout),
		ImageQueueSize:        getEnvIntOrDefault("IMAGE_QUEUE_SIZE", defaultImageQueueSize),
		NumImageWorkers:       getEnvIntOrDefault("NUM_IMAGE_WORKERS", defaultNumImageWorkers),
		JobTimeout:            getEnvDurationOrDefault("JOB_TIMEOUT", defaultJobTimeout),
		JobMaxAttempts:        getEnvIntOrDefault("JOB_MAX_ATTEMPTS", defaultJobMaxAttempts),
		ImageProxyURL:         os.Getenv("IMAGE_PROXY_URL"),
		PrewarmRatePerSec:     getEnvIntOrDefault("PREWARM_RATE_PER_SEC", defaultPrewarmRate),
		SessionSecret:         os.Getenv("SESSION_SECRET"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTExpiration:         getEnvDurationOrDefault("JWT_EXPIRATION", defaultJWTExpiration),
		CORSAllowedOrigins:    splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              getEnvIntOrDefault("SMTP_PORT", defaultSMTPPort),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:              getEnvOrDefault("SMTP_FROM", "no-reply@localhost"),
		SweepSchedule:         getEnvOrDefault("SWEEP_SCHEDULE", "0 3 * * *"),
		ReminderLeadDays:      getEnvIntOrDefault("REMINDER_LEAD_DAYS", defaultReminderLeadDays),
	}

	if cfg.DurableDisk == "s3" && cfg.S3Bucket == "" {
		return Config{}, fmt.Errorf("S3_BUCKET is required when DURABLE_DISK is s3")
	}

	if cfg.IsProduction() {
		if cfg.SessionSecret == "" || cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("SESSION_SECRET and JWT_SECRET are required in production")
		}
	} else {
		if cfg.SessionSecret == "" {
			log.Printf("Warning: SESSION_SECRET not set, using an insecure development secret")
			cfg.SessionSecret = "development-session-secret-change-me"
		}
		if cfg.JWTSecret == "" {
			log.Printf("Warning: JWT_SECRET not set, using an insecure development secret")
			cfg.JWTSecret = "development-jwt-secret-change-me"
		}
	}

	return cfg, nil
}
