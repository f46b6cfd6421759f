package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is built once and handed to every component constructor.
type Config struct {
	BaseURL  string
	Targets  []string
	RunID    string
	Schedule string
	LogLevel string

	// Browser
	Headless  bool
	ChromeBin string
	UserAgent string
	Timeout   time.Duration

	// Pacing and retries
	RequestDelay      time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	MaxTargetAttempts int

	// Scroll collection
	ScrollStep           int
	ScrollSelectors      []string
	SettleFast           time.Duration
	SettleSlow           time.Duration
	RecentResponseWindow time.Duration
	NoProgressThreshold  int
	MaxScrollSteps       int
	StatusEverySteps     int
	GroupSameAddress     bool
	ScreenshotTimeout    time.Duration

	// Output
	OutputDir   string
	StatusFile  string
	DatabaseURL string
}

// DefaultScrollSelectors lists article-list containers, most specific first.
var DefaultScrollSelectors = []string{
	"#articleListArea",
	".item_list--article",
	"div[class*='article_list']",
	"div[class*='item_list']",
	".list_contents",
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	outputDir := getEnv("OUTPUT_DIR", "./crawled_data")

	return &Config{
		BaseURL:  strings.TrimRight(getEnv("BASE_URL", "https://new.land.naver.com"), "/"),
		Targets:  SplitList(getEnv("COMPLEX_NUMBERS", "22065")),
		RunID:    getEnv("RUN_ID", ""),
		Schedule: getEnv("SCHEDULE", "0 9 * * *"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Headless:  getEnvBool("HEADLESS", true),
		ChromeBin: getEnv("CHROME_BIN", ""),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
		Timeout: getEnvDuration("TIMEOUT", 30*time.Second),

		RequestDelay:      getEnvDuration("REQUEST_DELAY", 2*time.Second),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:    getEnvDuration("RETRY_BASE_DELAY", 5*time.Second),
		MaxTargetAttempts: getEnvInt("MAX_TARGET_ATTEMPTS", 2),

		ScrollStep:           getEnvInt("SCROLL_STEP", 800),
		ScrollSelectors:      getEnvList("SCROLL_SELECTORS", DefaultScrollSelectors),
		SettleFast:           getEnvDuration("SCROLL_SETTLE_FAST", 300*time.Millisecond),
		SettleSlow:           getEnvDuration("SCROLL_SETTLE_SLOW", time.Second),
		RecentResponseWindow: getEnvDuration("RECENT_RESPONSE_WINDOW", 500*time.Millisecond),
		NoProgressThreshold:  getEnvInt("NO_PROGRESS_THRESHOLD", 3),
		MaxScrollSteps:       getEnvInt("MAX_SCROLL_STEPS", 100),
		StatusEverySteps:     getEnvInt("STATUS_EVERY_STEPS", 5),
		GroupSameAddress:     getEnvBool("GROUP_SAME_ADDRESS", true),
		ScreenshotTimeout:    getEnvDuration("SCREENSHOT_TIMEOUT", 3*time.Second),

		OutputDir:   outputDir,
		StatusFile:  getEnv("STATUS_FILE", strings.TrimRight(outputDir, "/")+"/status.json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

// SplitList splits a comma-separated value, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if val := os.Getenv(key); val != "" {
		if list := SplitList(val); len(list) > 0 {
			return list
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("750ms") or bare seconds ("2.5").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
