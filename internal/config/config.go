package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Web       WebConfig
	Store     StoreConfig
	Extractor ExtractorConfig
	Matcher   MatcherConfig
	Backup    BackupConfig
	Log       LogConfig
	Defaults  DefaultsConfig
}

type WebConfig struct {
	Host           string
	Port           int
	MaxUploadSize  int64   // bytes
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
	AllowedOrigins []string // CORS whitelist in addition to localhost
}

type StoreConfig struct {
	Driver       string // sqlite, postgres, mysql or memory
	Path         string // sqlite database file
	URL          string // PostgreSQL URL or MySQL DSN
	MaxOpenConns int
	MaxIdleConns int
}

type ExtractorConfig struct {
	Backend         string        // remote or onnx
	URL             string        // face embedding server, defaults to http://localhost:8000
	Dim             int           // embedding dimension, defaults to 128
	MultiFacePolicy string        // largest or reject
	MinScore        float64       // minimum detection score
	CacheSize       int           // LRU entries, 0 disables the cache
	Timeout         time.Duration // per-request timeout for the remote backend
	ONNX            ONNXConfig
}

type ONNXConfig struct {
	LibraryPath   string // onnxruntime shared library, empty uses the platform default
	DetectorPath  string // UltraFace-style detector model
	EmbedderPath  string // FaceNet/ArcFace-style embedding model
	EmbedderInput int    // square input size of the embedding model
}

type MatcherConfig struct {
	Metric     string
	Threshold  float64 // 0 means "use the per-metric default"
	Index      string  // exact or hnsw
	IndexPath  string  // where to persist the HNSW graph (optional)
	Candidates int     // HNSW candidates re-ranked exactly
}

type BackupConfig struct {
	Target string // local, s3 or minio
	Dir    string // local target directory
	Bucket string
	Prefix string
	Region string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

type LogConfig struct {
	Debug bool
}

type DefaultsConfig struct {
	Metrics map[string]MetricDefaults `yaml:"metrics"`
}

type MetricDefaults struct {
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is like envInt but accepts zero.
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "127.0.0.1"),
			Port:           envInt("WEB_PORT", 5000),
			MaxUploadSize:  int64(envInt("WEB_MAX_UPLOAD_MB", 16)) << 20,
			RateLimitRPS:   envFloat("WEB_RATE_LIMIT_RPS", 0),
			RateLimitBurst: envInt("WEB_RATE_LIMIT_BURST", 10),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(envString("STORE_DRIVER", "sqlite")),
			Path:         envString("STORE_PATH", "facedata/identities.db"),
			URL:          os.Getenv("STORE_URL"),
			MaxOpenConns: envInt("STORE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("STORE_MAX_IDLE_CONNS", 2),
		},
		Extractor: ExtractorConfig{
			Backend:         strings.ToLower(envString("EXTRACTOR_BACKEND", "remote")),
			URL:             os.Getenv("EXTRACTOR_URL"),
			Dim:             envInt("EXTRACTOR_DIM", 128),
			MultiFacePolicy: strings.ToLower(envString("EXTRACTOR_MULTI_FACE_POLICY", "largest")),
			MinScore:        envFloat("EXTRACTOR_MIN_SCORE", 0.5),
			CacheSize:       envNonNegativeInt("EXTRACTOR_CACHE_SIZE", 256),
			Timeout:         envDuration("EXTRACTOR_TIMEOUT", 30*time.Second),
			ONNX: ONNXConfig{
				LibraryPath:   os.Getenv("ONNX_LIBRARY_PATH"),
				DetectorPath:  envString("ONNX_DETECTOR_MODEL", "models/version-RFB-320.onnx"),
				EmbedderPath:  envString("ONNX_EMBEDDER_MODEL", "models/facenet.onnx"),
				EmbedderInput: envInt("ONNX_EMBEDDER_INPUT", 160),
			},
		},
		Matcher: MatcherConfig{
			Metric:     strings.ToLower(envString("MATCHER_METRIC", "euclidean")),
			Threshold:  envFloat("MATCHER_THRESHOLD", 0),
			Index:      strings.ToLower(envString("MATCHER_INDEX", "exact")),
			IndexPath:  os.Getenv("MATCHER_INDEX_PATH"),
			Candidates: envInt("MATCHER_CANDIDATES", 16),
		},
		Backup: BackupConfig{
			Target:         strings.ToLower(envString("BACKUP_TARGET", "local")),
			Dir:            envString("BACKUP_DIR", "facedata/backups"),
			Bucket:         os.Getenv("BACKUP_BUCKET"),
			Prefix:         envString("BACKUP_PREFIX", "face-id/"),
			Region:         os.Getenv("BACKUP_REGION"),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioUseSSL:    envBool("MINIO_USE_SSL", true),
		},
		Log: LogConfig{
			Debug: envBool("LOG_DEBUG", false),
		},
		Defaults: defaults,
	}
}

// MatchThreshold returns the configured threshold, falling back to the
// embedded per-metric default.
func (c *Config) MatchThreshold() float64 {
	if c.Matcher.Threshold > 0 {
		return c.Matcher.Threshold
	}
	if d, ok := c.Defaults.Metrics[c.Matcher.Metric]; ok {
		return d.Threshold
	}
	return 0
}

// Validate reports configuration values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("STORE_PATH is required for the sqlite driver"))
		}
	case "postgres", "mysql":
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("STORE_URL is required for the %s driver", c.Store.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Extractor.Backend {
	case "remote", "onnx":
	default:
		errs = append(errs, fmt.Errorf("unknown EXTRACTOR_BACKEND %q", c.Extractor.Backend))
	}
	switch c.Extractor.MultiFacePolicy {
	case "largest", "reject":
	default:
		errs = append(errs, fmt.Errorf("unknown EXTRACTOR_MULTI_FACE_POLICY %q", c.Extractor.MultiFacePolicy))
	}

	if _, ok := c.Defaults.Metrics[c.Matcher.Metric]; !ok {
		errs = append(errs, fmt.Errorf("unknown MATCHER_METRIC %q", c.Matcher.Metric))
	}
	if c.MatchThreshold() <= 0 {
		errs = append(errs, errors.New("match threshold must be positive"))
	}
	switch c.Matcher.Index {
	case "exact", "hnsw":
	default:
		errs = append(errs, fmt.Errorf("unknown MATCHER_INDEX %q", c.Matcher.Index))
	}

	return errors.Join(errs...)
}

// Addr returns the host:port the web server listens on.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
