package config

// EnvPrefix is empty because every field names its full variable.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreBackendPostgres  = "postgres"
	StoreBackendSQLite    = "sqlite"
	StoreBackendFirestore = "firestore"

	defaultSQLiteDSN = "file:forkcast.db?cache=shared"
)

const (
	EnvAppEnv       = "FORKCAST_APP_ENV"
	EnvPort         = "FORKCAST_APP_PORT"
	EnvLogLevel     = "FORKCAST_LOG_LEVEL"
	EnvLogFormat    = "FORKCAST_LOG_FORMAT"
	EnvStoreBackend = "FORKCAST_STORE_BACKEND"

	EnvDBDSN  = "FORKCAST_DB_DSN"
	EnvDBHost = "FORKCAST_DB_HOST"
	EnvDBUser = "FORKCAST_DB_USER"
	EnvDBName = "FORKCAST_DB_NAME"

	EnvRedisURL         = "FORKCAST_REDIS_URL"
	EnvRedisCombinedTTL = "FORKCAST_REDIS_COMBINED_TTL"

	EnvParsePolicy = "FORKCAST_PREFERENCES_PARSE_POLICY"

	EnvGoogleMapsAPIKey = "FORKCAST_GOOGLE_MAPS_API_KEY"
	EnvGeminiAPIKey     = "FORKCAST_GEMINI_API_KEY"
	EnvGCPProjectID     = "FORKCAST_GCP_PROJECT_ID"

	EnvPubSubEnabled    = "FORKCAST_PUBSUB_ENABLED"
	EnvPubSubPartyTopic = "FORKCAST_PUBSUB_PARTY_EVENTS_TOPIC"

	EnvOutboxEnabled = "FORKCAST_OUTBOX_ENABLED"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
