package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBDriver          string
	MongoURI          string
	DBName            string
	MongoTransactions bool

	JWTSecret            []byte
	UserTokenTTL         time.Duration
	AdminTokenTTL        time.Duration
	ResetTokenTTL        time.Duration
	ResetVerifiedTTL     time.Duration
	ResetRequireVerified bool

	RedisAddr     string
	RedisPassword string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string

	CORSOrigins    []string
	AuthRatePerMin int
}

var ErrMissingSecret = errors.New("JWT_SECRET is not set")

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
}

func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(GetEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	if raw == "0" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: invalid duration %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

// Load builds the Config from the environment. The signing secret has no default.
func Load() (Config, error) {
	cfg := Config{
		Port: GetEnv("PORT", "8080"),

		DBDriver:          strings.ToLower(GetEnv("DB_DRIVER", "mongo")),
		MongoURI:          GetEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:            GetEnv("DB_NAME", "shop"),
		MongoTransactions: getBool("MONGO_TRANSACTIONS", false),

		JWTSecret:            []byte(os.Getenv("JWT_SECRET")),
		UserTokenTTL:         getDuration("USER_TOKEN_TTL", time.Hour),
		AdminTokenTTL:        getDuration("ADMIN_TOKEN_TTL", 0),
		ResetTokenTTL:        getDuration("RESET_TOKEN_TTL", time.Hour),
		ResetVerifiedTTL:     getDuration("RESET_VERIFIED_TTL", 15*time.Minute),
		ResetRequireVerified: getBool("RESET_REQUIRE_VERIFIED", true),

		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),

		SMTPHost:     GetEnv("SMTP_HOST", ""),
		SMTPPort:     GetEnv("SMTP_PORT", "587"),
		SMTPUser:     GetEnv("SMTP_USER", ""),
		SMTPPassword: GetEnv("SMTP_PASSWORD", ""),
		MailFrom:     GetEnv("MAIL_FROM", "no-reply@shop.local"),

		MpesaBaseURL:        GetEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		MpesaConsumerKey:    GetEnv("MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret: GetEnv("MPESA_CONSUMER_SECRET", ""),

		CORSOrigins:    splitList(GetEnv("CORS_ORIGINS", "*")),
		AuthRatePerMin: getInt("AUTH_RATE_PER_MIN", 30),
	}

	if len(cfg.JWTSecret) == 0 {
		return cfg, ErrMissingSecret
	}
	if cfg.DBDriver != "mongo" && cfg.DBDriver != "memory" {
		return cfg, errors.New("DB_DRIVER must be mongo or memory, got " + cfg.DBDriver)
	}
	return cfg, nil
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
