package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/alert"
	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

const defaultCities = "101010100:北京,101020100:上海,101050101:哈尔滨"

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	QWeather struct {
		APIKey  string
		BaseURL string
		Referer string
	}

	Gemini struct {
		APIKey  string
		Model   string
		BaseURL string
		Pacing  time.Duration
	}

	Notify struct {
		Channel   string
		DetailURL string
		Timeout   time.Duration
	}

	WeChat struct {
		BaseURL string
		CorpID  string
		Secret  string
		AgentID int
	}

	PushPlus struct {
		URL   string
		Token string
	}

	Kafka struct {
		Brokers []string
		Topic   string
	}

	Scheduler struct {
		Schedule   string
		RunTimeout time.Duration
		Cities     []models.Location
	}

	Storage struct {
		MemoryBackend  string
		StatusFile     string
		RedisAddr      string
		RedisPassword  string
		RedisDB        int
		RedisPrefix    string
		ArchiveBackend string
		HistoryRoot    string
		LatestFile     string
		SQLitePath     string
	}

	Alerts     alert.Thresholds
	QuietHours alert.QuietWindow

	HTTPClient struct {
		Timeout time.Duration
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	p := &envParser{}
	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = p.duration("FIBER_READ_TIMEOUT", "10s")
	cfg.Server.WriteTimeout = p.duration("FIBER_WRITE_TIMEOUT", "10s")
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Weather source
	cfg.QWeather.APIKey = getEnv("QWEATHER_KEY", "")
	cfg.QWeather.BaseURL = strings.TrimRight(getEnv("QWEATHER_URL", "https://devapi.qweather.com"), "/")
	cfg.QWeather.Referer = getEnv("QWEATHER_REFERER", "")

	// Briefings
	cfg.Gemini.APIKey = getEnv("GOOGLE_API_KEY", "")
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.Gemini.BaseURL = strings.TrimRight(getEnv("GEMINI_URL", "https://generativelanguage.googleapis.com"), "/")
	cfg.Gemini.Pacing = p.duration("GEMINI_PACING", "800ms")

	// Notifications
	cfg.Notify.Channel = strings.ToLower(getEnv("NOTIFY_CHANNEL", "log"))
	cfg.Notify.DetailURL = getEnv("NOTIFY_DETAIL_URL", "")
	cfg.Notify.Timeout = p.duration("NOTIFY_TIMEOUT", "10s")
	cfg.WeChat.BaseURL = strings.TrimRight(getEnv("WECHAT_URL", "https://qyapi.weixin.qq.com"), "/")
	cfg.WeChat.CorpID = getEnv("WECHAT_CORP_ID", "")
	cfg.WeChat.Secret = getEnv("WECHAT_APP_SECRET", "")
	cfg.WeChat.AgentID = p.int("WECHAT_AGENT_ID", "0")
	cfg.PushPlus.URL = getEnv("PUSHPLUS_URL", "http://www.pushplus.plus/send")
	cfg.PushPlus.Token = getEnv("PUSHPLUS_TOKEN", "")
	cfg.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.Topic = getEnv("KAFKA_ALERT_TOPIC", "weather-alerts")

	// Scheduler configuration
	cfg.Scheduler.Schedule = getEnv("MONITOR_SCHEDULE", "0 * * * *")
	cfg.Scheduler.RunTimeout = p.duration("MONITOR_RUN_TIMEOUT", "5m")
	cities, err := loadCities(getEnv("CITIES_FILE", ""), getEnv("MONITOR_CITIES", defaultCities))
	if err != nil {
		p.fail(err)
	}
	cfg.Scheduler.Cities = cities

	// Storage
	cfg.Storage.MemoryBackend = strings.ToLower(getEnv("MEMORY_BACKEND", "file"))
	cfg.Storage.StatusFile = getEnv("STATUS_FILE", "public/weather-status.json")
	cfg.Storage.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Storage.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.Storage.RedisDB = p.int("REDIS_DB", "0")
	cfg.Storage.RedisPrefix = getEnv("REDIS_PREFIX", "weather-monitor:")
	cfg.Storage.ArchiveBackend = strings.ToLower(getEnv("ARCHIVE_BACKEND", "file"))
	cfg.Storage.HistoryRoot = getEnv("HISTORY_ROOT", "public/history")
	cfg.Storage.LatestFile = getEnv("LATEST_FILE", "public/latest-briefings.json")
	cfg.Storage.SQLitePath = getEnv("SQLITE_PATH", "data/history.db")

	// Alert thresholds
	defaults := alert.DefaultThresholds()
	cfg.Alerts.OrangeFreeze = p.int("ALERT_FREEZE_ORANGE", strconv.Itoa(defaults.OrangeFreeze))
	cfg.Alerts.RedFreeze = p.int("ALERT_FREEZE_RED", strconv.Itoa(defaults.RedFreeze))
	cfg.Alerts.OrangeDrop = p.int("ALERT_DROP_ORANGE", strconv.Itoa(defaults.OrangeDrop))
	cfg.Alerts.RedDrop = p.int("ALERT_DROP_RED", strconv.Itoa(defaults.RedDrop))
	cfg.Alerts.WindLevel = p.int("ALERT_WIND_LEVEL", strconv.Itoa(defaults.WindLevel))
	cfg.Alerts.WindKeyword = getEnv("ALERT_WIND_KEYWORD", defaults.WindKeyword)

	quiet := alert.DefaultQuietWindow()
	cfg.QuietHours.StartHour = p.int("QUIET_START_HOUR", strconv.Itoa(quiet.StartHour))
	cfg.QuietHours.EndHour = p.int("QUIET_END_HOUR", strconv.Itoa(quiet.EndHour))

	// Outbound HTTP
	cfg.HTTPClient.Timeout = p.duration("HTTP_CLIENT_TIMEOUT", "10s")

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = p.int("CIRCUIT_BREAKER_THRESHOLD", "3")
	cfg.CircuitBreaker.Timeout = p.duration("CIRCUIT_BREAKER_TIMEOUT", "30s")

	// Retry configuration
	cfg.Retry.MaxRetries = p.int("MAX_RETRIES", "2")
	cfg.Retry.Delay = p.duration("RETRY_DELAY", "1s")
	cfg.Retry.Multiplier = p.float("RETRY_MULTIPLIER", "2")

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.QWeather.APIKey == "" {
		return errors.New("QWEATHER_KEY is required")
	}
	if err := c.Alerts.Validate(); err != nil {
		return fmt.Errorf("alert thresholds: %w", err)
	}
	if err := c.QuietHours.Validate(); err != nil {
		return fmt.Errorf("QUIET_START_HOUR/QUIET_END_HOUR: %w", err)
	}
	if c.Scheduler.RunTimeout <= 0 {
		return errors.New("MONITOR_RUN_TIMEOUT must be positive")
	}

	switch c.Notify.Channel {
	case "log":
	case "wechat":
		if c.WeChat.CorpID == "" || c.WeChat.Secret == "" || c.WeChat.AgentID == 0 {
			return errors.New("NOTIFY_CHANNEL=wechat requires WECHAT_CORP_ID, WECHAT_APP_SECRET and WECHAT_AGENT_ID")
		}
	case "pushplus":
		if c.PushPlus.Token == "" {
			return errors.New("NOTIFY_CHANNEL=pushplus requires PUSHPLUS_TOKEN")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.New("NOTIFY_CHANNEL=kafka requires KAFKA_BROKERS and KAFKA_ALERT_TOPIC")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_CHANNEL %q", c.Notify.Channel)
	}

	switch c.Storage.MemoryBackend {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown MEMORY_BACKEND %q", c.Storage.MemoryBackend)
	}
	switch c.Storage.ArchiveBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown ARCHIVE_BACKEND %q", c.Storage.ArchiveBackend)
	}
	return nil
}

// loadCities reads the city list from a JSON file when path is set, otherwise
// from a comma-separated list of id:name[:tag] entries. A tag marks the city
// as notification-eligible.
func loadCities(path, list string) ([]models.Location, error) {
	var cities []models.Location
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("CITIES_FILE: %w", err)
		}
		if err := json.Unmarshal(data, &cities); err != nil {
			return nil, fmt.Errorf("CITIES_FILE %s: %w", path, err)
		}
	} else {
		for _, entry := range splitList(list) {
			parts := strings.Split(entry, ":")
			if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
				return nil, fmt.Errorf("MONITOR_CITIES: malformed entry %q, want id:name[:tag]", entry)
			}
			loc := models.Location{ID: parts[0], Name: parts[1]}
			if len(parts) == 3 && parts[2] != "" {
				loc.VIP = true
				loc.Tag = parts[2]
			}
			cities = append(cities, loc)
		}
	}

	if len(cities) == 0 {
		return nil, errors.New("no cities configured")
	}
	seen := make(map[string]bool, len(cities))
	for _, c := range cities {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("city %+v needs both id and name", c)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate city name %q", c.Name)
		}
		seen[c.Name] = true
	}
	return cities, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envParser reads typed variables and collects every parse failure.
type envParser struct {
	errs []error
}

func (p *envParser) fail(err error) {
	p.errs = append(p.errs, err)
}

func (p *envParser) duration(key, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, value, err))
		return 0
	}
	return duration
}

func (p *envParser) int(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, value, err))
		return 0
	}
	return intValue
}

func (p *envParser) float(key, defaultValue string) float64 {
	value := getEnv(key, defaultValue)
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, value, err))
		return 0
	}
	return floatValue
}
