package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Admin        AdminConfig
	FeatureFlags FeatureFlagsConfig
	Sync         SyncConfig
	Publish      PublishConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if cfg.DB.Driver != DriverSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Sync.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERSYNC_SERVICE_KIND" default:"api"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN    string `envconfig:"ORDERSYNC_DB_DSN"`
	Driver string `envconfig:"ORDERSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERSYNC_DB_USER"`
	LegacyPassword string `envconfig:"ORDERSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERSYNC_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"ORDERSYNC_DB_SQLITE_PATH" default:"ordersync.db"`

	MaxOpenConns    int           `envconfig:"ORDERSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERSYNC_REDIS_URL"`
	Address      string        `envconfig:"ORDERSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies operator tokens minted by the external login service.
type JWTConfig struct {
	Secret            string `envconfig:"ORDERSYNC_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERSYNC_JWT_ISSUER" default:"ordersync"`
	ExpirationMinutes int    `envconfig:"ORDERSYNC_JWT_EXPIRATION_MINUTES" default:"720"`
}

type AdminConfig struct {
	KeyHash          string `envconfig:"ORDERSYNC_ADMIN_KEY_HASH"`
	ArgonMemoryKB    int    `envconfig:"ORDERSYNC_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int    `envconfig:"ORDERSYNC_ARGON_TIME" default:"3"`
	ArgonParallelism int    `envconfig:"ORDERSYNC_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int    `envconfig:"ORDERSYNC_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int    `envconfig:"ORDERSYNC_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ORDERSYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ORDERSYNC_AUTO_MIGRATE" default:"false"`
}

// SyncConfig drives the snapshot producers and the scheduler cadence.
type SyncConfig struct {
	Embedded bool `envconfig:"ORDERSYNC_SYNC_EMBEDDED" default:"false"`

	OrdersCommand   string `envconfig:"ORDERSYNC_SYNC_ORDERS_COMMAND" default:"python3 scripts/estrai_ordini.py"`
	OrdersOutput    string `envconfig:"ORDERSYNC_SYNC_ORDERS_OUTPUT" default:"data/ordini.csv"`
	StockCommand    string `envconfig:"ORDERSYNC_SYNC_STOCK_COMMAND" default:"python3 scripts/estrai_giacenze.py"`
	StockOutput     string `envconfig:"ORDERSYNC_SYNC_STOCK_OUTPUT" default:"data/giacenze.csv"`
	ArticlesCommand string `envconfig:"ORDERSYNC_SYNC_ARTICLES_COMMAND" default:"python3 scripts/estrai_reparti.py"`
	ArticlesOutput  string `envconfig:"ORDERSYNC_SYNC_ARTICLES_OUTPUT" default:"data/articoli_reparti.csv"`
	OrdersFromDate  string `envconfig:"ORDERSYNC_SYNC_ORDERS_FROM_DATE" default:"2025-09-01"`

	ProducerTimeout  time.Duration `envconfig:"ORDERSYNC_SYNC_PRODUCER_TIMEOUT" default:"2m"`
	RetryAttempts    uint64        `envconfig:"ORDERSYNC_SYNC_RETRY_ATTEMPTS" default:"3"`
	RetryBase        time.Duration `envconfig:"ORDERSYNC_SYNC_RETRY_BASE" default:"500ms"`
	RetryCap         time.Duration `envconfig:"ORDERSYNC_SYNC_RETRY_CAP" default:"5s"`
	IncrementalEvery time.Duration `envconfig:"ORDERSYNC_SYNC_INCREMENTAL_EVERY" default:"30s"`
	FullReloadHours  []int         `envconfig:"ORDERSYNC_SYNC_FULL_RELOAD_HOURS" default:"0"`
	StockReloadHours []int         `envconfig:"ORDERSYNC_SYNC_STOCK_RELOAD_HOURS" default:"6,18"`
	Timezone         string        `envconfig:"ORDERSYNC_SYNC_TIMEZONE" default:"Europe/Rome"`
	// FullReloadCron and StockReloadCron, when set, replace the hour lists with a
	// five-field cron expression.
	FullReloadCron  string `envconfig:"ORDERSYNC_SYNC_FULL_RELOAD_CRON"`
	StockReloadCron string `envconfig:"ORDERSYNC_SYNC_STOCK_RELOAD_CRON"`
	// LeaderTTL bounds how long a crashed scheduler keeps the others waiting.
	LeaderTTL time.Duration `envconfig:"ORDERSYNC_SYNC_LEADER_TTL" default:"30s"`
}

// Location resolves the configured scheduler timezone, falling back to UTC.
func (s SyncConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s SyncConfig) validate() error {
	for _, h := range append(append([]int{}, s.FullReloadHours...), s.StockReloadHours...) {
		if h < 0 || h > 23 {
			return fmt.Errorf("sync reload hour %d out of range 0-23", h)
		}
	}
	if s.IncrementalEvery < 0 {
		return fmt.Errorf("%s must not be negative", EnvSyncIncrementalEvery)
	}
	if s.LeaderTTL > 0 && s.LeaderTTL < 3*time.Second {
		return fmt.Errorf("%s must be at least 3s", EnvSyncLeaderTTL)
	}
	return nil
}

// PublishConfig controls how committed cache generations travel between processes.
type PublishConfig struct {
	KeyPrefix      string        `envconfig:"ORDERSYNC_PUBLISH_KEY_PREFIX" default:"ordersync:cache"`
	FollowInterval time.Duration `envconfig:"ORDERSYNC_PUBLISH_FOLLOW_INTERVAL" default:"5s"`
	PayloadTTL     time.Duration `envconfig:"ORDERSYNC_PUBLISH_PAYLOAD_TTL" default:"48h"`
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
