package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	Session  SessionConfig
	Sync     SyncConfig
	CORS     CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BRIGHTMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"BRIGHTMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRIGHTMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRIGHTMARKET_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"BRIGHTMARKET_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BRIGHTMARKET_DB_DSN"`
	Driver string `envconfig:"BRIGHTMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BRIGHTMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"BRIGHTMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BRIGHTMARKET_DB_USER"`
	LegacyPassword string `envconfig:"BRIGHTMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"BRIGHTMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"BRIGHTMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRIGHTMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRIGHTMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRIGHTMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRIGHTMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BRIGHTMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BRIGHTMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"BRIGHTMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"BRIGHTMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BRIGHTMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRIGHTMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRIGHTMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRIGHTMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRIGHTMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BRIGHTMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BRIGHTMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BRIGHTMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BRIGHTMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BRIGHTMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BRIGHTMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BRIGHTMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BRIGHTMARKET_ARGON_KEY_LEN" default:"32"`
}

type SessionConfig struct {
	AnonymousTTL time.Duration `envconfig:"BRIGHTMARKET_SESSION_ANONYMOUS_TTL" default:"720h"`
}

// SyncConfig makes every retry knob of the replace protocol explicit rather
// than inheriting driver or framework defaults.
type SyncConfig struct {
	Debounce           time.Duration `envconfig:"BRIGHTMARKET_SYNC_DEBOUNCE" default:"250ms"`
	PushMaxAttempts    int           `envconfig:"BRIGHTMARKET_SYNC_PUSH_MAX_ATTEMPTS" default:"4"`
	PushBaseBackoff    time.Duration `envconfig:"BRIGHTMARKET_SYNC_PUSH_BASE_BACKOFF" default:"200ms"`
	PushMaxBackoff     time.Duration `envconfig:"BRIGHTMARKET_SYNC_PUSH_MAX_BACKOFF" default:"5s"`
	InsertMaxAttempts  int           `envconfig:"BRIGHTMARKET_SYNC_INSERT_MAX_ATTEMPTS" default:"6"`
	InsertBaseBackoff  time.Duration `envconfig:"BRIGHTMARKET_SYNC_INSERT_BASE_BACKOFF" default:"50ms"`
	MaxItemsPerRequest int           `envconfig:"BRIGHTMARKET_SYNC_MAX_ITEMS" default:"200"`
	// SessionIdleTimeout evicts engine sessions untouched for this long; zero
	// disables eviction (tests, short-lived tools).
	SessionIdleTimeout time.Duration `envconfig:"BRIGHTMARKET_SYNC_SESSION_IDLE_TIMEOUT" default:"30m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BRIGHTMARKET_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
