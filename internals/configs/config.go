package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var (
	JWTSecret string

	// Upstream SIS API
	SISBaseURL        string
	SISTokenURL       string
	SISPageLimit      int
	SISMaxRetries     int
	SISRetryBaseMs    int
	SISRateLimitWait  time.Duration
	SISRequestTimeout time.Duration

	// Sync engine
	SyncMaxConcurrent   int
	SyncLockMinutes     int
	SyncStaleDays       int
	HealthCacheDuration time.Duration
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	}

	SISBaseURL = GetEnv("SIS_API_BASE_URL", "https://api.sis.example.com/v3")
	SISTokenURL = GetEnv("SIS_TOKEN_URL", "https://auth.sis.example.com/oauth/tokens")
	SISPageLimit = GetEnvInt("SIS_PAGE_LIMIT", 500)
	SISMaxRetries = GetEnvInt("SIS_MAX_RETRIES", 4)
	SISRetryBaseMs = GetEnvInt("SIS_RETRY_BASE_MS", 500)
	SISRateLimitWait = time.Duration(GetEnvInt("SIS_RATE_LIMIT_WAIT_SEC", 10)) * time.Second
	SISRequestTimeout = time.Duration(GetEnvInt("SIS_REQUEST_TIMEOUT_SEC", 60)) * time.Second

	SyncMaxConcurrent = GetEnvInt("SYNC_MAX_CONCURRENT", 5)
	SyncLockMinutes = GetEnvInt("SYNC_LOCK_MINUTES", 30)
	SyncStaleDays = GetEnvInt("SYNC_STALE_DAYS", 7)
	HealthCacheDuration = time.Duration(GetEnvInt("HEALTH_CACHE_MINUTES", 5)) * time.Minute
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	l.LogLevel = level
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[INFO] "+msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[WARN] "+msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[ERROR] "+msg, data...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	if err != nil {
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	} else if elapsed > l.SlowThreshold {
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
