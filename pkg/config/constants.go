package config

const EnvPrefix = "COURSETRAK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "COURSETRAK_APP_ENV"
	EnvPort         = "COURSETRAK_APP_PORT"
	EnvDBDSN        = "COURSETRAK_DB_DSN"
	EnvDBHost       = "COURSETRAK_DB_HOST"
	EnvDBUser       = "COURSETRAK_DB_USER"
	EnvDBName       = "COURSETRAK_DB_NAME"
	EnvRedisURL     = "COURSETRAK_REDIS_URL"
	EnvGCPProjectID = "COURSETRAK_GCP_PROJECT_ID"
	EnvPubSubTopic  = "COURSETRAK_PUBSUB_JOBS_TOPIC"
	EnvPubSubSub    = "COURSETRAK_PUBSUB_JOBS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
