package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Store       StoreConfig
	DB          DBConfig
	Redis       RedisConfig
	Preferences PreferencesConfig
	GoogleMaps  GoogleMapsConfig
	Gemini      GeminiConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	switch cfg.Store.Backend {
	case StoreBackendPostgres:
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	case StoreBackendSQLite:
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
	case StoreBackendFirestore:
		if cfg.GCP.ProjectID == "" {
			return nil, fmt.Errorf("%s is required for the firestore store", EnvGCPProjectID)
		}
	}
	if cfg.PubSub.Enabled && cfg.GCP.ProjectID == "" {
		return nil, fmt.Errorf("%s is required when pubsub is enabled", EnvGCPProjectID)
	}
	if cfg.Outbox.Enabled && !cfg.Store.UsesSQL() {
		return nil, fmt.Errorf("%s requires a sql store backend", EnvOutboxEnabled)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"FORKCAST_APP_ENV" required:"true"`
	Port            string        `envconfig:"FORKCAST_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"FORKCAST_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"FORKCAST_LOG_FORMAT" default:"json"`
	LogWarnStack    bool          `envconfig:"FORKCAST_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"FORKCAST_APP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// HTTPConfig tunes the public API surface.
type HTTPConfig struct {
	CORSAllowedOrigins []string      `envconfig:"FORKCAST_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	GuestSubmitLimit   int           `envconfig:"FORKCAST_GUEST_SUBMIT_LIMIT" default:"30"`
	GuestSubmitWindow  time.Duration `envconfig:"FORKCAST_GUEST_SUBMIT_WINDOW" default:"1m"`
	ReadHeaderTimeout  time.Duration `envconfig:"FORKCAST_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
}

// StoreConfig selects where parties and preference documents live.
type StoreConfig struct {
	Backend     string `envconfig:"FORKCAST_STORE_BACKEND" default:"postgres"`
	AutoMigrate bool   `envconfig:"FORKCAST_AUTO_MIGRATE" default:"false"`
}

// UsesSQL reports whether the relational store is selected.
func (s StoreConfig) UsesSQL() bool {
	return s.Backend == StoreBackendPostgres || s.Backend == StoreBackendSQLite
}

func (s *StoreConfig) validate() error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case StoreBackendPostgres, StoreBackendSQLite, StoreBackendFirestore:
		return nil
	}
	return fmt.Errorf("%s must be one of %s, %s, %s", EnvStoreBackend, StoreBackendPostgres, StoreBackendSQLite, StoreBackendFirestore)
}

type DBConfig struct {
	DSN string `envconfig:"FORKCAST_DB_DSN"`

	LegacyHost     string `envconfig:"FORKCAST_DB_HOST"`
	LegacyPort     int    `envconfig:"FORKCAST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FORKCAST_DB_USER"`
	LegacyPassword string `envconfig:"FORKCAST_DB_PASSWORD"`
	LegacyName     string `envconfig:"FORKCAST_DB_NAME"`
	LegacySSLMode  string `envconfig:"FORKCAST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FORKCAST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FORKCAST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FORKCAST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FORKCAST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL            string        `envconfig:"FORKCAST_REDIS_URL" required:"true"`
	Address        string        `envconfig:"FORKCAST_REDIS_ADDR"`
	Password       string        `envconfig:"FORKCAST_REDIS_PASSWORD"`
	DB             int           `envconfig:"FORKCAST_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"FORKCAST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"FORKCAST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"FORKCAST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"FORKCAST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"FORKCAST_REDIS_WRITE_TIMEOUT" default:"5s"`
	CombinedTTL    time.Duration `envconfig:"FORKCAST_REDIS_COMBINED_TTL" default:"30m"`
	IdempotencyTTL time.Duration `envconfig:"FORKCAST_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// PreferencesConfig tunes how submitted preference documents are handled.
type PreferencesConfig struct {
	ParsePolicy      string        `envconfig:"FORKCAST_PREFERENCES_PARSE_POLICY" default:"strict"`
	AggregateTimeout time.Duration `envconfig:"FORKCAST_PREFERENCES_AGGREGATE_TIMEOUT" default:"15s"`
	MaxDocumentBytes int64         `envconfig:"FORKCAST_PREFERENCES_MAX_DOCUMENT_BYTES" default:"65536"`
}

type GoogleMapsConfig struct {
	APIKey  string        `envconfig:"FORKCAST_GOOGLE_MAPS_API_KEY"`
	Timeout time.Duration `envconfig:"FORKCAST_GOOGLE_MAPS_TIMEOUT" default:"5s"`
}

type GeminiConfig struct {
	APIKey  string        `envconfig:"FORKCAST_GEMINI_API_KEY"`
	Model   string        `envconfig:"FORKCAST_GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout time.Duration `envconfig:"FORKCAST_GEMINI_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FORKCAST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FORKCAST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FORKCAST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	Enabled          bool          `envconfig:"FORKCAST_PUBSUB_ENABLED" default:"false"`
	PartyEventsTopic string        `envconfig:"FORKCAST_PUBSUB_PARTY_EVENTS_TOPIC" default:"forkcast-party-events"`
	PublishTimeout   time.Duration `envconfig:"FORKCAST_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
}

// OutboxConfig controls durable event delivery. When enabled the API queues party
// events in outbox_events and cmd/outbox-publisher forwards them to Pub/Sub.
type OutboxConfig struct {
	Enabled      bool          `envconfig:"FORKCAST_OUTBOX_ENABLED" default:"false"`
	BatchSize    int           `envconfig:"FORKCAST_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"FORKCAST_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"FORKCAST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
