package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreElasticsearch = "elasticsearch"
	StoreMemory        = "memory"
)

// Event transports.
const (
	EventsKafka     = "kafka"
	EventsInProcess = "inprocess"
)

// Common contains storage parameters shared by every service.
type Common struct {
	Store              string
	ElasticsearchAddr  string
	ElasticsearchIndex string
	PageSize           int
}

// Kafka holds broker settings for opportunity write events.
type Kafka struct {
	KafkaBrokers []string
	EventsTopic  string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Kafka
	BindAddr        string
	Region          string
	AdminEmail      string
	SigningKey      string
	TokenIssuer     string
	AuthEmulator    bool
	AuthCacheSize   int
	AuthCacheTTL    time.Duration
	EventsTransport string
	RedisURL        string
	NotifyStream    string
	NotifyTimeout   time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Poller configures the change poller.
type Poller struct {
	Common
	Schedule     string
	Concurrency  int
	FetchTimeout time.Duration
	FetchMode    string
	RunTimeout   time.Duration
	RunOnStart   bool
	MetricsAddr  string
}

// Trigger configures the publication trigger consumer.
type Trigger struct {
	Common
	Kafka
	ConsumerGroup string
	RedisURL      string
	NotifyStream  string
	NotifyTimeout time.Duration
	MetricsAddr   string
}

// LoadDotEnv reads .env (or the files given) into the environment when present.
// Variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func loadCommon() (Common, error) {
	c := Common{
		Store:              strings.ToLower(getEnv("STORE", StoreElasticsearch)),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX_PREFIX", "govtrack_"),
		PageSize:           getInt("POLLER_PAGE_SIZE", 200),
	}
	if c.Store != StoreElasticsearch && c.Store != StoreMemory {
		return c, fmt.Errorf("STORE must be %q or %q, got %q", StoreElasticsearch, StoreMemory, c.Store)
	}
	if c.PageSize <= 0 {
		return c, fmt.Errorf("POLLER_PAGE_SIZE must be positive")
	}
	return c, nil
}

func loadKafka(required bool) (Kafka, error) {
	k := Kafka{
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		EventsTopic:  getEnv("EVENTS_TOPIC", "opportunity_writes"),
	}
	if required && len(k.KafkaBrokers) == 0 {
		return k, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	return k, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:          common,
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		Region:          getEnv("FUNCTION_REGION", "unknown"),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		SigningKey:      getEnv("AUTH_SIGNING_KEY", ""),
		TokenIssuer:     getEnv("AUTH_ISSUER", "govtrack"),
		AuthEmulator:    getBool("AUTH_EMULATOR", false),
		AuthCacheSize:   getInt("AUTH_CACHE_CAPACITY", 10000),
		AuthCacheTTL:    getDuration("AUTH_CACHE_TTL", "5m"),
		EventsTransport: strings.ToLower(getEnv("EVENTS_TRANSPORT", EventsKafka)),
		RedisURL:        getEnv("REDIS_URL", ""),
		NotifyStream:    getEnv("NOTIFY_STREAM", "push:notifications"),
		NotifyTimeout:   getDuration("NOTIFY_TIMEOUT", "10s"),
		RequestTimeout:  getDuration("API_REQUEST_TIMEOUT", "10s"),
		ShutdownTimeout: getDuration("API_SHUTDOWN_TIMEOUT", "10s"),
	}

	c.Kafka, err = loadKafka(c.EventsTransport == EventsKafka)
	if err != nil {
		return nil, err
	}

	if c.AdminEmail == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL is required")
	}
	if c.SigningKey == "" {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is required")
	}
	if c.EventsTransport != EventsKafka && c.EventsTransport != EventsInProcess {
		return nil, fmt.Errorf("EVENTS_TRANSPORT must be %q or %q", EventsKafka, EventsInProcess)
	}
	if c.AuthCacheSize <= 0 {
		return nil, fmt.Errorf("AUTH_CACHE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadPoller builds a Poller config from environment variables.
func LoadPoller() (*Poller, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Poller{
		Common:       common,
		Schedule:     getEnv("POLLER_SCHEDULE", "@every 30m"),
		Concurrency:  getInt("POLLER_CONCURRENCY", 4),
		FetchTimeout: getDuration("POLLER_FETCH_TIMEOUT", "10s"),
		FetchMode:    strings.ToLower(getEnv("POLLER_FETCH_MODE", "http")),
		RunTimeout:   getDuration("POLLER_RUN_TIMEOUT", "20m"),
		RunOnStart:   getBool("POLLER_RUN_ON_START", true),
		MetricsAddr:  getEnv("POLLER_METRICS_ADDR", ":9092"),
	}

	if c.Concurrency <= 0 {
		return nil, fmt.Errorf("POLLER_CONCURRENCY must be positive")
	}
	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("POLLER_FETCH_TIMEOUT must be positive")
	}
	if c.FetchMode != "http" && c.FetchMode != "mock" {
		return nil, fmt.Errorf("POLLER_FETCH_MODE must be \"http\" or \"mock\", got %q", c.FetchMode)
	}

	return c, nil
}

// LoadTrigger builds a Trigger config from environment variables.
func LoadTrigger() (*Trigger, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	if common.Store == StoreMemory {
		return nil, fmt.Errorf("the trigger needs a shared store, STORE=memory is not supported")
	}

	k, err := loadKafka(true)
	if err != nil {
		return nil, err
	}

	c := &Trigger{
		Common:        common,
		Kafka:         k,
		ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "publication-trigger"),
		RedisURL:      getEnv("REDIS_URL", ""),
		NotifyStream:  getEnv("NOTIFY_STREAM", "push:notifications"),
		NotifyTimeout: getDuration("NOTIFY_TIMEOUT", "10s"),
		MetricsAddr:   getEnv("TRIGGER_METRICS_ADDR", ":9091"),
	}

	if c.NotifyTimeout <= 0 {
		return nil, fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
