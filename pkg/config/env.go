package config

// EnvPrefix is handed to envconfig; every field below carries an explicit key so the
// prefix only matters for unkeyed additions.
const EnvPrefix = "ORDERSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "ORDERSYNC_APP_ENV"
	EnvPort         = "ORDERSYNC_APP_PORT"
	EnvLogLevel     = "ORDERSYNC_LOG_LEVEL"
	EnvLogWarnStack = "ORDERSYNC_LOG_WARN_STACK"
	EnvServiceKind  = "ORDERSYNC_SERVICE_KIND"

	EnvDBDSN      = "ORDERSYNC_DB_DSN"
	EnvDBDriver   = "ORDERSYNC_DB_DRIVER"
	EnvDBHost     = "ORDERSYNC_DB_HOST"
	EnvDBPort     = "ORDERSYNC_DB_PORT"
	EnvDBUser     = "ORDERSYNC_DB_USER"
	EnvDBPassword = "ORDERSYNC_DB_PASSWORD"
	EnvDBName     = "ORDERSYNC_DB_NAME"
	EnvDBSSLMode  = "ORDERSYNC_DB_SSLMODE"

	EnvRedisURL  = "ORDERSYNC_REDIS_URL"
	EnvRedisAddr = "ORDERSYNC_REDIS_ADDR"

	EnvJWTSecret  = "ORDERSYNC_JWT_SECRET"
	EnvJWTIssuer  = "ORDERSYNC_JWT_ISSUER"
	EnvJWTExpMins = "ORDERSYNC_JWT_EXPIRATION_MINUTES"

	EnvAdminKeyHash = "ORDERSYNC_ADMIN_KEY_HASH"

	EnvUseSQLite   = "ORDERSYNC_USE_SQLITE"
	EnvAutoMigrate = "ORDERSYNC_AUTO_MIGRATE"

	EnvSyncEmbedded          = "ORDERSYNC_SYNC_EMBEDDED"
	EnvSyncOrdersCommand     = "ORDERSYNC_SYNC_ORDERS_COMMAND"
	EnvSyncOrdersOutput      = "ORDERSYNC_SYNC_ORDERS_OUTPUT"
	EnvSyncStockCommand      = "ORDERSYNC_SYNC_STOCK_COMMAND"
	EnvSyncStockOutput       = "ORDERSYNC_SYNC_STOCK_OUTPUT"
	EnvSyncArticlesCommand   = "ORDERSYNC_SYNC_ARTICLES_COMMAND"
	EnvSyncArticlesOutput    = "ORDERSYNC_SYNC_ARTICLES_OUTPUT"
	EnvSyncProducerTimeout   = "ORDERSYNC_SYNC_PRODUCER_TIMEOUT"
	EnvSyncRetryAttempts     = "ORDERSYNC_SYNC_RETRY_ATTEMPTS"
	EnvSyncIncrementalEvery  = "ORDERSYNC_SYNC_INCREMENTAL_EVERY"
	EnvSyncFullReloadHours   = "ORDERSYNC_SYNC_FULL_RELOAD_HOURS"
	EnvSyncStockReloadHours  = "ORDERSYNC_SYNC_STOCK_RELOAD_HOURS"
	EnvSyncOrdersFromDate    = "ORDERSYNC_SYNC_ORDERS_FROM_DATE"
	EnvSyncTimezone          = "ORDERSYNC_SYNC_TIMEZONE"
	EnvSyncLeaderTTL         = "ORDERSYNC_SYNC_LEADER_TTL"
	EnvSyncFullReloadCron    = "ORDERSYNC_SYNC_FULL_RELOAD_CRON"
	EnvSyncStockReloadCron   = "ORDERSYNC_SYNC_STOCK_RELOAD_CRON"
	EnvPublishFollowInterval = "ORDERSYNC_PUBLISH_FOLLOW_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
