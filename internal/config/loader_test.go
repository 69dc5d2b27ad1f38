package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8080
  mode: "release"
database:
  host: "localhost"
  port: 5432
  user: "user"
  password: "password"
  db_name: "extraction"
  max_conns: 25
redis:
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
  group_id: "extraction-pipeline"
milvus:
  addr: "localhost:19530"
worker:
  concurrency: 10
log:
  level: "info"
  format: "json"
ocr:
  provider: "tesseract"
embedder:
  base_url: "http://embedder.internal"
  dimensions: 1536
llm:
  base_url: "http://llm.internal"
pipeline:
  t_auto: 0.95
  t_quick: 0.80
  semantic_floor: 0.60
  semantic_autoapprove: 0.85
  ambiguity_gap: 0.05
  extraction_batch_size: 50
  semantic_top_k: 5
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "extraction", cfg.Database.DBName)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.95, cfg.Pipeline.TAuto)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidConfigFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 99999
database:
  host: "localhost"
  user: "user"
  db_name: "db"
redis:
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
  group_id: "group"
milvus:
  addr: "localhost:19530"
embedder:
  base_url: "http://embedder"
llm:
  base_url: "http://llm"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"EXTRACTOR_DATABASE_HOST":     "db-host",
		"EXTRACTOR_DATABASE_PORT":     "5432",
		"EXTRACTOR_DATABASE_USER":     "user",
		"EXTRACTOR_DATABASE_DB_NAME":  "extraction",
		"EXTRACTOR_REDIS_ADDR":        "localhost:6379",
		"EXTRACTOR_KAFKA_BROKERS":     "localhost:9092",
		"EXTRACTOR_KAFKA_GROUP_ID":    "group",
		"EXTRACTOR_MILVUS_ADDR":       "localhost:19530",
		"EXTRACTOR_EMBEDDER_BASE_URL": "http://embedder",
		"EXTRACTOR_LLM_BASE_URL":      "http://llm",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "db-host", cfg.Database.Host)
	assert.Equal(t, "extraction", cfg.Database.DBName)
}

func TestLoadFromEnv_MissingRequiredFieldsFailsValidation(t *testing.T) {
	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad("/nonexistent/path/config.yaml")
	})
}

func TestMustLoad_Success(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)
	assert.NotPanics(t, func() {
		cfg := MustLoad(path)
		assert.NotNil(t, cfg)
	})
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)

	done := make(chan *Config, 1)
	Watch(path, func(cfg *Config) {
		select {
		case done <- cfg:
		default:
		}
	})

	updated := validConfigYAML + "\n# trivial comment to trigger fsnotify\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-done:
		assert.Equal(t, 8080, cfg.Server.Port)
	case <-time.After(2 * time.Second):
		t.Skip("filesystem watch did not fire within the test timeout; environment-dependent")
	}
}
