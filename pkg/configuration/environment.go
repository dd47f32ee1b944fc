package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/rescueranger/rescueranger/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory, falling back
// to the nearest ancestor directory containing a go.mod so tests run from
// package directories still pick up the repo-root .env files.
func LoadEnv(envFiles []string) (int, error) {
	root, err := findEnvRoot(envFiles)
	if err != nil {
		return 0, err
	}

	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		candidate := filepath.Join(root, file)
		if _, err := os.Stat(candidate); err == nil {
			existingFiles = append(existingFiles, candidate)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func findEnvRoot(envFiles []string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for current := dir; ; {
		for _, file := range envFiles {
			if _, err := os.Stat(filepath.Join(current, file)); err == nil {
				return current, nil
			}
		}
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"rescueranger"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// TenantOptions configures how inbound requests are mapped to tenants.
type TenantOptions struct {
	// BaseDomain is the apex under which tenant subdomains live,
	// e.g. "rescueranger.com" for acme.rescueranger.com.
	BaseDomain string `env:"BASE_DOMAIN" envDefault:"rescueranger.com"`
	// SubdomainHeader carries an explicit tenant subdomain when the host
	// cannot (API clients, internal calls).
	SubdomainHeader string `env:"TENANT_HEADER" envDefault:"X-Tenant-Subdomain"`
	// IDHeader carries an explicit tenant UUID.
	IDHeader string `env:"TENANT_ID_HEADER" envDefault:"X-Tenant-ID"`
	// QueryParam is the query-string fallback source.
	QueryParam string `env:"TENANT_QUERY_PARAM" envDefault:"tenant"`
	// ReservedSubdomains are never resolvable as tenants.
	ReservedSubdomains []string `env:"RESERVED_SUBDOMAINS" envSeparator:"," envDefault:"www,api,admin,app,mail,ftp,ssl,cdn,blog,help,support,assets"`
	// DevDefaultSubdomain is used when no other signal is present outside
	// production.
	DevDefaultSubdomain string `env:"DEV_DEFAULT_TENANT" envDefault:""`
	// CacheTTL bounds staleness of directory cache entries.
	CacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"30m"`
	// CacheTimeout bounds a single cache round trip before falling through
	// to the durable store.
	CacheTimeout time.Duration `env:"TENANT_CACHE_TIMEOUT" envDefault:"150ms"`
	// CacheBreakerCooldown is how long the directory skips the cache after
	// consecutive cache failures trip the breaker.
	CacheBreakerCooldown time.Duration `env:"TENANT_CACHE_BREAKER_COOLDOWN" envDefault:"30s"`
}

func (t *TenantOptions) Validate() error {
	if strings.TrimSpace(t.BaseDomain) == "" {
		return fmt.Errorf("BASE_DOMAIN must not be empty")
	}
	t.BaseDomain = strings.ToLower(strings.TrimSpace(t.BaseDomain))
	normalized := make([]string, 0, len(t.ReservedSubdomains))
	for _, sub := range t.ReservedSubdomains {
		sub = strings.ToLower(strings.TrimSpace(sub))
		if sub != "" {
			normalized = append(normalized, sub)
		}
	}
	t.ReservedSubdomains = normalized
	if t.CacheTTL <= 0 {
		return fmt.Errorf("TENANT_CACHE_TTL must be positive, got %s", t.CacheTTL)
	}
	return nil
}

type AuditOptions struct {
	// RecentWindow is the rolling window over which metrics are derived.
	RecentWindow time.Duration `env:"AUDIT_RECENT_WINDOW" envDefault:"1h"`
	// RecentBufferSize caps the in-memory rolling event buffer.
	RecentBufferSize int `env:"AUDIT_RECENT_BUFFER" envDefault:"4096"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"rescueranger"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	Tenant        TenantOptions
	Audit         AuditOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions

	RedisURL         string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int           `env:"PORT" envDefault:"3200"`
	SessionDuration  time.Duration `env:"SESSION_DURATION" envDefault:"720h"`
	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string        `env:"-"`
	Domain           string        `env:"DOMAIN" envDefault:"localhost"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string        `env:"LOG_PATH" envDefault:"./logs/app.log"`
	// Request ID is taken from this header when present, generated otherwise.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	SidCookieKey    string `env:"SID_COOKIE_KEY" envDefault:"sid"`

	// RLS enforcement mode (disabled/enforce). When enforced every tenant
	// transaction sets app.current_tenant for row-level policies.
	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) IsProduction() bool {
	return c.GoAppEnvironment == Production
}

func (c *Configuration) Scheme() string {
	if c.IsProduction() {
		return "https"
	}
	return "http"
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Tenant.Validate(); err != nil {
		return fmt.Errorf("tenant configuration error: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.validateRLS(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.IsProduction() {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	if mode == "" {
		mode = "disabled"
	}
	switch mode {
	case "disabled", "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}

	if mode == "enforce" && strings.EqualFold(strings.TrimSpace(c.Database.User), "postgres") {
		return fmt.Errorf("RLS_ENFORCE=enforce requires a non-superuser DB_USER (postgres will bypass RLS)")
	}

	c.RLSEnforce = mode
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
