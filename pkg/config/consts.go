package config

// EnvPrefix scopes every environment variable consumed by the platform.
const EnvPrefix = "BRIGHTMARKET"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "BRIGHTMARKET_APP_ENV"
	EnvPort     = "BRIGHTMARKET_APP_PORT"
	EnvDBDSN    = "BRIGHTMARKET_DB_DSN"
	EnvDBHost   = "BRIGHTMARKET_DB_HOST"
	EnvDBUser   = "BRIGHTMARKET_DB_USER"
	EnvDBName   = "BRIGHTMARKET_DB_NAME"
	EnvRedisURL = "BRIGHTMARKET_REDIS_URL"

	EnvJWTSecret  = "BRIGHTMARKET_JWT_SECRET"
	EnvJWTIssuer  = "BRIGHTMARKET_JWT_ISSUER"
	EnvJWTExpMins = "BRIGHTMARKET_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
