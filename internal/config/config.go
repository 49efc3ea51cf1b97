package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Port           string
	MongoURI       string
	StorageBackend string
	JWTSecret      string
	JWTExpiry      string
	AllowedOrigins []string
	PublicBaseURL  string
	UploadDir      string

	Emergency EmergencyConfig
	SMS       SMSConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Batch     LocationBatchConfig

	RateLimitEnabled    bool
	SeedManagerUsername string
	SeedManagerPassword string
}

// EmergencyConfig holds the contact numbers and windows used by the emergency ledger.
type EmergencyConfig struct {
	PolicePhone      string
	HospitalPhone    string
	DedupWindow      time.Duration
	FacilityRadiusKm float64
	ListCacheTTL     time.Duration
}

type SMSConfig struct {
	APIKey string
	APIURL string
}

// SMTPConfig configures the email-to-SMS fallback gateway.
type SMTPConfig struct {
	Host          string
	Port          string
	Username      string
	Password      string
	FromEmail     string
	GatewayDomain string
}

type RedisConfig struct {
	URL                string
	Host               string
	Port               string
	Password           string
	DB                 int
	PoolSize           int
	MinIdleConns       int
	MaxRetries         int
	RetryDelay         time.Duration
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LocationBatchConfig struct {
	MaxBatchSize  int
	FlushInterval time.Duration
}

func Load() *Config {
	// .env is optional; the process environment wins
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	storage := getEnv("STORAGE_BACKEND", StorageMongo)
	mongoURI := os.Getenv("MONGO_URI")
	if storage == StorageMongo && mongoURI == "" {
		log.Fatal("MONGO_URI environment variable is not set")
	}

	allowedOrigins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		MongoURI:       mongoURI,
		StorageBackend: storage,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      os.Getenv("JWT_EXPIRY"),
		AllowedOrigins: splitList(allowedOrigins),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		Emergency: EmergencyConfig{
			PolicePhone:      getEnv("POLICE_PHONE", "+1234567890"),
			HospitalPhone:    getEnv("HOSPITAL_PHONE", "+0987654321"),
			DedupWindow:      getDuration("DEDUP_WINDOW", 5*time.Minute),
			FacilityRadiusKm: getFloat("FACILITY_RADIUS_KM", 10),
			ListCacheTTL:     getDuration("EMERGENCY_LIST_CACHE_TTL", 5*time.Second),
		},
		SMS: SMSConfig{
			APIKey: os.Getenv("SMS_API_KEY"),
			APIURL: getEnv("SMS_API_URL", "https://www.fast2sms.com/dev/bulkV2"),
		},
		SMTP: SMTPConfig{
			Host:          os.Getenv("SMTP_HOST"),
			Port:          getEnv("SMTP_PORT", "587"),
			Username:      os.Getenv("SMTP_USERNAME"),
			Password:      os.Getenv("SMTP_PASSWORD"),
			FromEmail:     os.Getenv("SMTP_FROM_EMAIL"),
			GatewayDomain: os.Getenv("SMS_EMAIL_GATEWAY_DOMAIN"),
		},
		Redis: LoadRedisConfig(),
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "emergency_events"),
		},
		Batch: LocationBatchConfig{
			MaxBatchSize:  getInt("LOCATION_BATCH_MAX_SIZE", 100),
			FlushInterval: getDuration("LOCATION_BATCH_INTERVAL", 2*time.Second),
		},
		RateLimitEnabled:    getBool("RATE_LIMIT_ENABLED", true),
		SeedManagerUsername: os.Getenv("SEED_MANAGER_USERNAME"),
		SeedManagerPassword: os.Getenv("SEED_MANAGER_PASSWORD"),
	}
}

func LoadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:                os.Getenv("REDIS_URL"),
		Host:               os.Getenv("REDIS_HOST"),
		Port:               getEnv("REDIS_PORT", "6379"),
		Password:           os.Getenv("REDIS_PASSWORD"),
		DB:                 getInt("REDIS_DB", 0),
		PoolSize:           getInt("REDIS_POOL_SIZE", 10),
		MinIdleConns:       getInt("REDIS_MIN_IDLE_CONNS", 2),
		MaxRetries:         getInt("REDIS_MAX_RETRIES", 3),
		RetryDelay:         getDuration("REDIS_RETRY_DELAY", 500*time.Millisecond),
		DialTimeout:        getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:        getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:       getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		PoolTimeout:        getDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
		IdleTimeout:        getDuration("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		IdleCheckFrequency: getDuration("REDIS_IDLE_CHECK_FREQUENCY", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
