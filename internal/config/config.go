package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GatewayGemini = "gemini"
	GatewayKIE    = "kie"

	MissingAngleEmpty  = "empty"
	MissingAngleRelock = "relock"
)

// Config aggregates runtime configuration for the studio and supporting services.
type Config struct {
	LogLevel string

	DBDriver    string
	DatabaseDSN string

	HTTPListenAddr string
	AdminUsername  string
	AdminPassword  string
	PublicBaseURL  string

	JWTSecret  string
	SessionTTL time.Duration

	GatewayProvider   string
	GeminiAPIKey      string
	GeminiModel       string
	KIEAPIKey         string
	KIEBaseURL        string
	KIEModel          string
	RequestTimeout    time.Duration
	GenerationTimeout time.Duration
	BreakerFailures   int
	BreakerOpenFor    time.Duration

	FrontViewCost            int
	UnlockCost               int
	NewAccountCredits        int
	WalkInCredits            int
	HistoryMaxEntries        int
	TransactionLogMax        int
	RecentAccountsMax        int
	UnlockMissingAnglePolicy string
	BookingMaxFutureMonths   int
	GenerationsPerMinute     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	PaymentProvider              string
	PaymentCurrency              string
	YooKassaShopID               string
	YooKassaSecretKey            string
	YooKassaReturnURL            string
	TelegramBotToken             string
	TelegramPaymentProviderToken string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string

	BookingSweepSpec string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultKIEBaseURL = "https://api.kie.ai"

	generationTimeout := getDuration("GENERATION_TIMEOUT", 3*time.Minute)
	cfg := Config{
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DBDriver:                 strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		HTTPListenAddr:           getEnv("HTTP_LISTEN_ADDR", ":8080"),
		AdminUsername:            getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:            getEnv("ADMIN_PASSWORD", "change-me"),
		PublicBaseURL:            strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SessionTTL:               getDuration("SESSION_TTL", 30*24*time.Hour),
		GatewayProvider:          strings.ToLower(getEnv("GATEWAY_PROVIDER", GatewayGemini)),
		GeminiModel:              getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		KIEBaseURL:               normalizeKIEBaseURL(getEnv("KIE_BASE_URL", defaultKIEBaseURL), defaultKIEBaseURL),
		KIEModel:                 getEnv("KIE_MODEL", "nano-banana-pro"),
		RequestTimeout:           time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		GenerationTimeout:        generationTimeout,
		BreakerFailures:          getInt("BREAKER_FAILURES", 5),
		BreakerOpenFor:           getDuration("BREAKER_OPEN_FOR", 60*time.Second),
		FrontViewCost:            getInt("FRONT_VIEW_COST", 1),
		UnlockCost:               getInt("UNLOCK_COST", 2),
		NewAccountCredits:        getInt("NEW_ACCOUNT_CREDITS", 2),
		WalkInCredits:            getInt("WALKIN_CREDITS", 10),
		HistoryMaxEntries:        getInt("HISTORY_MAX_ENTRIES", 50),
		TransactionLogMax:        getInt("TRANSACTION_LOG_MAX", 100),
		RecentAccountsMax:        getInt("RECENT_ACCOUNTS_MAX", 3),
		UnlockMissingAnglePolicy: strings.ToLower(getEnv("UNLOCK_MISSING_ANGLE_POLICY", MissingAngleEmpty)),
		BookingMaxFutureMonths:   getInt("BOOKING_MAX_FUTURE_MONTHS", 3),
		GenerationsPerMinute:     getInt("GENERATIONS_PER_MINUTE", 6),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getInt("REDIS_DB", 0),
		LockTTL:                  getDuration("LOCK_TTL", generationTimeout+30*time.Second),
		PaymentProvider:          strings.ToLower(getEnv("PAYMENT_PROVIDER", "none")),
		PaymentCurrency:          getEnv("PAYMENT_CURRENCY", "INR"),
		YooKassaShopID:           getEnv("YOOKASSA_SHOP_ID", ""),
		YooKassaSecretKey:        getEnv("YOOKASSA_SECRET_KEY", ""),
		YooKassaReturnURL:        getEnv("YOOKASSA_RETURN_URL", ""),
		S3Endpoint:               getEnv("S3_ENDPOINT", ""),
		S3Region:                 os.Getenv("S3_REGION"),
		S3AccessKey:              os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:              os.Getenv("S3_SECRET_KEY"),
		S3Bucket:                 os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:          os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:           getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:                 getEnv("S3_PREFIX", "looks"),
		BookingSweepSpec:         getEnv("BOOKING_SWEEP_SPEC", "0 0 * * * *"),
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.KIEAPIKey = os.Getenv("KIE_API_KEY")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramPaymentProviderToken = os.Getenv("TELEGRAM_PAYMENT_PROVIDER_TOKEN")

	switch cfg.DBDriver {
	case "mysql":
		cfg.DatabaseDSN = os.Getenv("MYSQL_DSN")
	case "sqlite":
		cfg.DatabaseDSN = getEnv("SQLITE_PATH", "prelook.db")
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}

	var missing []string
	if cfg.DatabaseDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch cfg.GatewayProvider {
	case GatewayGemini:
		if cfg.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case GatewayKIE:
		if cfg.KIEAPIKey == "" {
			missing = append(missing, "KIE_API_KEY")
		}
		// KIE reads the source photo by URL, so it needs a public bucket.
		if cfg.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	default:
		return Config{}, fmt.Errorf("unsupported GATEWAY_PROVIDER: %s", cfg.GatewayProvider)
	}
	switch cfg.UnlockMissingAnglePolicy {
	case MissingAngleEmpty, MissingAngleRelock:
	default:
		return Config{}, fmt.Errorf("unsupported UNLOCK_MISSING_ANGLE_POLICY: %s", cfg.UnlockMissingAnglePolicy)
	}
	switch cfg.PaymentProvider {
	case "none":
	case "telegram":
		if cfg.TelegramBotToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if cfg.TelegramPaymentProviderToken == "" {
			missing = append(missing, "TELEGRAM_PAYMENT_PROVIDER_TOKEN")
		}
	case "yookassa":
		if cfg.YooKassaShopID == "" {
			missing = append(missing, "YOOKASSA_SHOP_ID")
		}
		if cfg.YooKassaSecretKey == "" {
			missing = append(missing, "YOOKASSA_SECRET_KEY")
		}
	default:
		return Config{}, fmt.Errorf("unsupported PAYMENT_PROVIDER: %s", cfg.PaymentProvider)
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// S3Enabled reports whether generated images go to object storage instead of inline data URIs.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// normalizeKIEBaseURL ensures we always hit the documented API host. The root
// kie.ai domain serves HTML instead of JSON.
func normalizeKIEBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}
	if parsed.Host == "kie.ai" {
		parsed.Host = "api.kie.ai"
	}

	return parsed.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// loadEnvFile loads the first env file found. Running without one is fine
// when the environment is already populated.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
