package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/govtrack/backend/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadPollerDefaults(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX_PREFIX", "")
	t.Setenv("POLLER_SCHEDULE", "")
	t.Setenv("POLLER_CONCURRENCY", "")
	t.Setenv("POLLER_FETCH_TIMEOUT", "")
	t.Setenv("POLLER_FETCH_MODE", "")
	t.Setenv("POLLER_METRICS_ADDR", "")

	cfg, err := config.LoadPoller()
	require.NoError(t, err)

	require.Equal(t, config.StoreElasticsearch, cfg.Store)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "govtrack_", cfg.ElasticsearchIndex)
	require.Equal(t, "@every 30m", cfg.Schedule)
	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout)
	require.Equal(t, "http", cfg.FetchMode)
	require.True(t, cfg.RunOnStart)
	require.Equal(t, ":9092", cfg.MetricsAddr)
}

func TestLoadPollerOverrides(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("POLLER_SCHEDULE", "*/5 * * * *")
	t.Setenv("POLLER_CONCURRENCY", "9")
	t.Setenv("POLLER_FETCH_TIMEOUT", "3s")
	t.Setenv("POLLER_FETCH_MODE", "MOCK")
	t.Setenv("POLLER_PAGE_SIZE", "50")
	t.Setenv("POLLER_RUN_ON_START", "false")

	cfg, err := config.LoadPoller()
	require.NoError(t, err)

	require.Equal(t, config.StoreMemory, cfg.Store)
	require.Equal(t, "*/5 * * * *", cfg.Schedule)
	require.Equal(t, 9, cfg.Concurrency)
	require.Equal(t, 3*time.Second, cfg.FetchTimeout)
	require.Equal(t, "mock", cfg.FetchMode)
	require.Equal(t, 50, cfg.PageSize)
	require.False(t, cfg.RunOnStart)
}

func TestLoadPollerRejectsBadValues(t *testing.T) {
	t.Setenv("POLLER_CONCURRENCY", "0")
	_, err := config.LoadPoller()
	require.Error(t, err)

	t.Setenv("POLLER_CONCURRENCY", "2")
	t.Setenv("POLLER_FETCH_MODE", "ftp")
	_, err = config.LoadPoller()
	require.Error(t, err)

	t.Setenv("POLLER_FETCH_MODE", "http")
	t.Setenv("STORE", "postgres")
	_, err = config.LoadPoller()
	require.Error(t, err)
}

func TestLoadAPIRequiresAuthSettings(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("AUTH_SIGNING_KEY", "secret")
	_, err := config.LoadAPI()
	require.Error(t, err)

	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("AUTH_SIGNING_KEY", "")
	_, err = config.LoadAPI()
	require.Error(t, err)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("FUNCTION_REGION", "asia-south1")
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("AUTH_SIGNING_KEY", "secret")
	t.Setenv("AUTH_EMULATOR", "true")
	t.Setenv("AUTH_CACHE_TTL", "1m")
	t.Setenv("EVENTS_TRANSPORT", "inprocess")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, "asia-south1", cfg.Region)
	require.True(t, cfg.AuthEmulator)
	require.Equal(t, time.Minute, cfg.AuthCacheTTL)
	require.Equal(t, config.EventsInProcess, cfg.EventsTransport)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
}

func TestLoadTrigger(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("EVENTS_TOPIC", "writes")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")
	t.Setenv("REDIS_URL", "redis://redis:6379/0")
	t.Setenv("NOTIFY_TIMEOUT", "4s")

	cfg, err := config.LoadTrigger()
	require.NoError(t, err)
	require.Equal(t, "writes", cfg.EventsTopic)
	require.Equal(t, "publication-trigger", cfg.ConsumerGroup)
	require.Equal(t, "redis://redis:6379/0", cfg.RedisURL)
	require.Equal(t, 4*time.Second, cfg.NotifyTimeout)

	t.Setenv("STORE", "memory")
	_, err = config.LoadTrigger()
	require.Error(t, err)
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GOVTRACK_TEST_A=from-file\nGOVTRACK_TEST_B=from-file\n"), 0o600))

	t.Setenv("GOVTRACK_TEST_A", "from-env")
	require.NoError(t, config.LoadDotEnv(path))
	t.Cleanup(func() { _ = os.Unsetenv("GOVTRACK_TEST_B") })

	require.Equal(t, "from-env", os.Getenv("GOVTRACK_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("GOVTRACK_TEST_B"))

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}
