package config

const (
	EnvPrefix = "CATALOG"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:catalog.db?_foreign_keys=on"

	EnvAppEnv          = "CATALOG_APP_ENV"
	EnvPort            = "CATALOG_APP_PORT"
	EnvRequestTimeout  = "CATALOG_REQUEST_TIMEOUT"
	EnvDBDSN           = "CATALOG_DB_DSN"
	EnvDBDriver        = "CATALOG_DB_DRIVER"
	EnvDBHost          = "CATALOG_DB_HOST"
	EnvDBUser          = "CATALOG_DB_USER"
	EnvDBName          = "CATALOG_DB_NAME"
	EnvDBStmtTimeout   = "CATALOG_DB_STATEMENT_TIMEOUT"
	EnvRedisURL        = "CATALOG_REDIS_URL"
	EnvJWTSecret       = "CATALOG_JWT_SECRET"
	EnvJWTIssuer       = "CATALOG_JWT_ISSUER"
	EnvJWTExpMins      = "CATALOG_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTL = "CATALOG_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite       = "CATALOG_USE_SQLITE"
	EnvGCSBucket       = "CATALOG_GCS_BUCKET_NAME"
	EnvSMTPHost        = "CATALOG_SMTP_HOST"
	EnvOTPTTL          = "CATALOG_OTP_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
