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
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	OpenAI       OpenAIConfig
	Sendgrid     SendgridConfig
	Notify       NotifyConfig
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
	Env          string `envconfig:"COURSETRAK_APP_ENV" required:"true"`
	Port         string `envconfig:"COURSETRAK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COURSETRAK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURSETRAK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COURSETRAK_SERVICE_KIND" default:"notify-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"COURSETRAK_DB_DSN"`
	Driver string `envconfig:"COURSETRAK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COURSETRAK_DB_HOST"`
	LegacyPort     int    `envconfig:"COURSETRAK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURSETRAK_DB_USER"`
	LegacyPassword string `envconfig:"COURSETRAK_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURSETRAK_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURSETRAK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURSETRAK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSETRAK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSETRAK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSETRAK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSETRAK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COURSETRAK_REDIS_ADDR"`
	Password     string        `envconfig:"COURSETRAK_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSETRAK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSETRAK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSETRAK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSETRAK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSETRAK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSETRAK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite       bool `envconfig:"COURSETRAK_USE_SQLITE" default:"false"`
	AutoMigrate     bool `envconfig:"COURSETRAK_AUTO_MIGRATE" default:"false"`
	AISummaries     bool `envconfig:"COURSETRAK_FEATURE_AI_SUMMARIES" default:"true"`
	NotifyDispatch  bool `envconfig:"COURSETRAK_FEATURE_NOTIFY_DISPATCH" default:"true"`
	NotifyClassOnly bool `envconfig:"COURSETRAK_FEATURE_NOTIFY_CLASS_ONLY" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COURSETRAK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"COURSETRAK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COURSETRAK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	JobsTopic        string `envconfig:"COURSETRAK_PUBSUB_JOBS_TOPIC" required:"true"`
	JobsSubscription string `envconfig:"COURSETRAK_PUBSUB_JOBS_SUBSCRIPTION" required:"true"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"COURSETRAK_OPENAI_API_KEY"`
	BaseURL string        `envconfig:"COURSETRAK_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model   string        `envconfig:"COURSETRAK_OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"COURSETRAK_OPENAI_TIMEOUT" default:"60s"`
}

// Configured reports whether a credential is present for the summarization API.
func (o OpenAIConfig) Configured() bool {
	return strings.TrimSpace(o.APIKey) != ""
}

type SendgridConfig struct {
	APIKey      string `envconfig:"COURSETRAK_SENDGRID_API_KEY"`
	BaseURL     string `envconfig:"COURSETRAK_SENDGRID_BASE_URL" default:"https://api.sendgrid.com/v3"`
	DefaultFrom string `envconfig:"COURSETRAK_SENDGRID_FROM_EMAIL"`
}

// NotifyConfig tunes the notification pipeline.
type NotifyConfig struct {
	BatchSize          int           `envconfig:"COURSETRAK_NOTIFY_BATCH_SIZE" default:"50"`
	BatchInterval      time.Duration `envconfig:"COURSETRAK_NOTIFY_BATCH_INTERVAL" default:"1m"`
	RunBudget          time.Duration `envconfig:"COURSETRAK_NOTIFY_RUN_BUDGET" default:"90s"`
	RunSafetyMargin    time.Duration `envconfig:"COURSETRAK_NOTIFY_RUN_SAFETY_MARGIN" default:"5s"`
	LockTTL            time.Duration `envconfig:"COURSETRAK_NOTIFY_LOCK_TTL" default:"120s"`
	MaxSummaryAttempts int           `envconfig:"COURSETRAK_NOTIFY_MAX_SUMMARY_ATTEMPTS" default:"3"`
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
