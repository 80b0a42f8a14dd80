package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is passed to envconfig; the explicit CASHDASH_ names on the
	// struct tags keep variable names greppable.
	EnvPrefix = "CASHDASH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CASHDASH_DB_DSN"
	EnvDBHost = "CASHDASH_DB_HOST"
	EnvDBUser = "CASHDASH_DB_USER"
	EnvDBName = "CASHDASH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Orders        OrdersConfig
	Refunds       RefundsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Square        SquareConfig
	FCM           FCMConfig
	APNs          APNsConfig
	InternalAuth  InternalAuthConfig
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
	Env          string `envconfig:"CASHDASH_APP_ENV" required:"true"`
	Port         string `envconfig:"CASHDASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CASHDASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASHDASH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CASHDASH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CASHDASH_DB_DSN"`
	Driver string `envconfig:"CASHDASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CASHDASH_DB_HOST"`
	LegacyPort     int    `envconfig:"CASHDASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CASHDASH_DB_USER"`
	LegacyPassword string `envconfig:"CASHDASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"CASHDASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"CASHDASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CASHDASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CASHDASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CASHDASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASHDASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CASHDASH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CASHDASH_REDIS_ADDR"`
	Password     string        `envconfig:"CASHDASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASHDASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASHDASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASHDASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASHDASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASHDASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASHDASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CASHDASH_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CASHDASH_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CASHDASH_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CASHDASH_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CASHDASH_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CASHDASH_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CASHDASH_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CASHDASH_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CASHDASH_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CASHDASH_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CASHDASH_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CASHDASH_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CASHDASH_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CASHDASH_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CASHDASH_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CASHDASH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CASHDASH_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CASHDASH_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OrdersConfig struct {
	OTPSecret      string        `envconfig:"CASHDASH_ORDERS_OTP_SECRET" required:"true"`
	OTPTTL         time.Duration `envconfig:"CASHDASH_ORDERS_OTP_TTL" default:"10m"`
	MaxAmountCents int           `envconfig:"CASHDASH_ORDERS_MAX_AMOUNT_CENTS" default:"50000"`
	ServiceFeeBP   int           `envconfig:"CASHDASH_ORDERS_SERVICE_FEE_BP" default:"500"`
	RunnerFeeCents int           `envconfig:"CASHDASH_ORDERS_RUNNER_FEE_CENTS" default:"300"`
	OTPExpirySweep time.Duration `envconfig:"CASHDASH_ORDERS_OTP_EXPIRY_SWEEP" default:"1m"`
}

type RefundsConfig struct {
	Provider      string        `envconfig:"CASHDASH_REFUNDS_PROVIDER" default:"square"`
	RetryInterval time.Duration `envconfig:"CASHDASH_REFUNDS_RETRY_INTERVAL" default:"5m"`
	MaxAttempts   int           `envconfig:"CASHDASH_REFUNDS_MAX_ATTEMPTS" default:"8"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CASHDASH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CASHDASH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CASHDASH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"CASHDASH_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"CASHDASH_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"CASHDASH_PUBSUB_NOTIFICATION_TOPIC" default:"cd-notification-events"`
	NotificationSubscription string `envconfig:"CASHDASH_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	RefundsTopic             string `envconfig:"CASHDASH_PUBSUB_REFUNDS_TOPIC" required:"true"`
	RefundsSubscription      string `envconfig:"CASHDASH_PUBSUB_REFUNDS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CASHDASH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CASHDASH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CASHDASH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"CASHDASH_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"CASHDASH_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"CASHDASH_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type FCMConfig struct {
	ProjectID          string        `envconfig:"CASHDASH_FCM_PROJECT_ID"`
	ClientEmail        string        `envconfig:"CASHDASH_FCM_CLIENT_EMAIL"`
	PrivateKeyPEM      string        `envconfig:"CASHDASH_FCM_PRIVATE_KEY_PEM"`
	TokenURL           string        `envconfig:"CASHDASH_FCM_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`
	SendTimeout        time.Duration `envconfig:"CASHDASH_FCM_SEND_TIMEOUT" default:"10s"`
	TokenRefreshMargin time.Duration `envconfig:"CASHDASH_FCM_TOKEN_REFRESH_MARGIN" default:"5m"`
}

// Configured reports whether service-account credentials are present.
func (f FCMConfig) Configured() bool {
	return f.ProjectID != "" && f.ClientEmail != "" && f.PrivateKeyPEM != ""
}

type APNsConfig struct {
	KeyID         string        `envconfig:"CASHDASH_APNS_KEY_ID"`
	TeamID        string        `envconfig:"CASHDASH_APNS_TEAM_ID"`
	PrivateKeyPEM string        `envconfig:"CASHDASH_APNS_PRIVATE_KEY_PEM"`
	Topic         string        `envconfig:"CASHDASH_APNS_TOPIC"`
	UseSandbox    bool          `envconfig:"CASHDASH_APNS_USE_SANDBOX" default:"true"`
	SendTimeout   time.Duration `envconfig:"CASHDASH_APNS_SEND_TIMEOUT" default:"10s"`
}

// Configured reports whether an APNs signing key is present.
func (a APNsConfig) Configured() bool {
	return a.KeyID != "" && a.TeamID != "" && a.PrivateKeyPEM != "" && a.Topic != ""
}

type InternalAuthConfig struct {
	SharedSecret string `envconfig:"CASHDASH_INTERNAL_SHARED_SECRET"`
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
