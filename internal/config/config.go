package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"` // health, readiness and metrics
	} `mapstructure:"server"`
	HTTP HTTPConfig `mapstructure:"http"`
	NATS struct {
		URL                 string             `mapstructure:"url"`
		Leads               ConsumerNatsConfig `mapstructure:"leads"`
		DLQStream           string             `mapstructure:"dlqStream"`
		DLQSubject          string             `mapstructure:"dlqSubject"`
		DLQConsumer         string             `mapstructure:"dlqConsumer"`
		DLQWorkers          int                `mapstructure:"dlqWorkers"`
		DLQBaseDelayMinutes int                `mapstructure:"dlqBaseDelayMinutes"`
		DLQMaxDelayMinutes  int                `mapstructure:"dlqMaxDelayMinutes"`
		DLQMaxAgeDays       int                `mapstructure:"dlqMaxAgeDays"`
		DLQMaxDeliver       int                `mapstructure:"dlqMaxDeliver"`
		DLQMaxRetries       int                `mapstructure:"dlqMaxRetries"`
		DLQAckWait          time.Duration      `mapstructure:"dlqAckWait"`
		DLQMaxAckPending    int                `mapstructure:"dlqMaxAckPending"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Redis struct {
		URL string `mapstructure:"url"` // empty selects in-memory dedupe and failure tracking
	} `mapstructure:"redis"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	WorkerPools struct {
		Notification WorkerPoolConfig `mapstructure:"notification"`
		Visits       WorkerPoolConfig `mapstructure:"visits"`
	} `mapstructure:"workerPools"`
	Attribution  AttributionConfig  `mapstructure:"attribution"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Notification NotificationConfig `mapstructure:"notification"`
	Alert        AlertConfig        `mapstructure:"alert"`
	Site         SiteConfig         `mapstructure:"site"`
	RateLimit    RateLimitConfig    `mapstructure:"rateLimit"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
}

// RateLimitConfig limits inquiry submissions per client IP.
type RateLimitConfig struct {
	InquiryRPS   float64 `mapstructure:"inquiryRPS"`
	InquiryBurst int     `mapstructure:"inquiryBurst"`
}

// OutboxConfig configures the outbox relay.
type OutboxConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Batch    int           `mapstructure:"batch"`
	Grace    time.Duration `mapstructure:"grace"` // rows younger than this are left to the request path
}

// HTTPConfig configures the public web server.
type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	TrustedProxies []string      `mapstructure:"trustedProxies"`
}

// AttributionConfig configures the referral cookie.
type AttributionConfig struct {
	CookieName  string        `mapstructure:"cookieName"`
	TTL         time.Duration `mapstructure:"ttl"`
	HashKey     string        `mapstructure:"hashKey"`
	BlockKey    string        `mapstructure:"blockKey"` // optional, enables encryption
	Secure      bool          `mapstructure:"secure"`
	CatalogPath string        `mapstructure:"catalogPath"`
}

// GatewayConfig selects and configures the WhatsApp gateway.
type GatewayConfig struct {
	Provider   string        `mapstructure:"provider"` // http or twilio
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	TwilioSID  string        `mapstructure:"twilioSID"`
	TwilioAuth string        `mapstructure:"twilioAuth"`
	From       string        `mapstructure:"from"`
}

// NotificationConfig tunes lead notification delivery.
type NotificationConfig struct {
	DedupeWindow         time.Duration `mapstructure:"dedupeWindow"`
	FailureThreshold     int           `mapstructure:"failureThreshold"`
	FailureWindow        time.Duration `mapstructure:"failureWindow"`
	RecentContexts       int           `mapstructure:"recentContexts"`
	VisitorConfirmation  bool          `mapstructure:"visitorConfirmation"`
	DefaultRegion        string        `mapstructure:"defaultRegion"`
	// MaxAttempts is the number of sends per delivery within the gateway timeout.
	MaxAttempts          int           `mapstructure:"maxAttempts"`
	RetryInitialInterval time.Duration `mapstructure:"retryInitialInterval"`
}

// AlertConfig configures operator alert email.
type AlertConfig struct {
	Provider     string   `mapstructure:"provider"` // smtp or sendgrid
	From         string   `mapstructure:"from"`
	Recipients   []string `mapstructure:"recipients"`
	SMTPHost     string   `mapstructure:"smtpHost"`
	SMTPPort     int      `mapstructure:"smtpPort"`
	SMTPUsername string   `mapstructure:"smtpUsername"`
	SMTPPassword string   `mapstructure:"smtpPassword"`
	SendGridKey  string   `mapstructure:"sendgridKey"`
}

// SiteConfig holds the defaults used when site settings cannot be read.
type SiteConfig struct {
	Name                   string `mapstructure:"name"`
	BaseURL                string `mapstructure:"baseURL"`
	AffiliateLeadTemplate  string `mapstructure:"affiliateLeadTemplate"`
	VisitorConfirmTemplate string `mapstructure:"visitorConfirmTemplate"`
}

// WorkerPoolConfig holds configuration for an ants worker pool
type WorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`
	QueueSize  int           `mapstructure:"queueSize"`
	MaxBlock   time.Duration `mapstructure:"maxBlock"`
	ExpiryTime time.Duration `mapstructure:"expiryTime"`
}

// ConsumerNatsConfig holds configuration specific to a NATS consumer
type ConsumerNatsConfig struct {
	MaxAge       int64         `mapstructure:"maxAge"` // days
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"`
	QueueGroup   string        `mapstructure:"group"`
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"`
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`
}

const (
	DefaultAffiliateLeadTemplate = "New inquiry for {{.PropertyTitle}}\n" +
		"Name: {{.VisitorName}}\nWhatsApp: {{.VisitorPhone}}\n" +
		"{{if .Message}}Message: {{.Message}}\n{{end}}" +
		"Lead: {{.LeadID}}\n{{.PropertyURL}}"
	DefaultVisitorConfirmTemplate = "Hi {{.VisitorName}}, thanks for your interest in {{.PropertyTitle}} on {{.SiteName}}. " +
		"Our agent will contact you shortly."
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8081)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readTimeout", 10*time.Second)
	v.SetDefault("http.writeTimeout", 15*time.Second)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.leads.stream", "LEADS")
	v.SetDefault("nats.leads.consumer", "lead-notifier")
	v.SetDefault("nats.leads.group", "lead-notifier")
	v.SetDefault("nats.leads.subjectList", []string{"v1.leads.>"})
	v.SetDefault("nats.leads.maxAge", 7)
	v.SetDefault("nats.leads.maxDeliver", 5)
	v.SetDefault("nats.leads.nakBaseDelay", time.Second)
	v.SetDefault("nats.leads.nakMaxDelay", time.Minute)
	v.SetDefault("nats.dlqStream", "LEADS_DLQ")
	v.SetDefault("nats.dlqSubject", "v1.dlq.leads")
	v.SetDefault("nats.dlqConsumer", "lead-dlq-worker")
	v.SetDefault("nats.dlqWorkers", 4)
	v.SetDefault("nats.dlqBaseDelayMinutes", 1)
	v.SetDefault("nats.dlqMaxDelayMinutes", 15)
	v.SetDefault("nats.dlqMaxAgeDays", 7)
	v.SetDefault("nats.dlqMaxDeliver", 10)
	v.SetDefault("nats.dlqMaxRetries", 5)
	v.SetDefault("nats.dlqAckWait", 30*time.Second)
	v.SetDefault("nats.dlqMaxAckPending", 100)

	v.SetDefault("database.postgresAutoMigrate", true)

	v.SetDefault("workerPools.notification.poolSize", 16)
	v.SetDefault("workerPools.notification.queueSize", 1000)
	v.SetDefault("workerPools.notification.maxBlock", time.Second)
	v.SetDefault("workerPools.notification.expiryTime", time.Minute)
	v.SetDefault("workerPools.visits.poolSize", 8)
	v.SetDefault("workerPools.visits.expiryTime", time.Minute)

	v.SetDefault("attribution.cookieName", "affiliate_id")
	v.SetDefault("attribution.ttl", 30*24*time.Hour)
	v.SetDefault("attribution.secure", false)
	v.SetDefault("attribution.catalogPath", "/properties")

	v.SetDefault("gateway.provider", "http")
	v.SetDefault("gateway.timeout", 10*time.Second)

	v.SetDefault("notification.dedupeWindow", time.Hour)
	v.SetDefault("notification.failureThreshold", 5)
	v.SetDefault("notification.failureWindow", time.Hour)
	v.SetDefault("notification.recentContexts", 10)
	v.SetDefault("notification.visitorConfirmation", true)
	v.SetDefault("notification.defaultRegion", "ID")
	v.SetDefault("notification.maxAttempts", 3)
	v.SetDefault("notification.retryInitialInterval", 500*time.Millisecond)

	v.SetDefault("alert.provider", "smtp")
	v.SetDefault("alert.smtpPort", 587)

	v.SetDefault("site.name", "Property Listings")
	v.SetDefault("site.baseURL", "http://localhost:8080")
	v.SetDefault("site.affiliateLeadTemplate", DefaultAffiliateLeadTemplate)
	v.SetDefault("site.visitorConfirmTemplate", DefaultVisitorConfirmTemplate)

	v.SetDefault("rateLimit.inquiryRPS", 0.2)
	v.SetDefault("rateLimit.inquiryBurst", 5)

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.interval", 30*time.Second)
	v.SetDefault("outbox.batch", 100)
	v.SetDefault("outbox.grace", time.Minute)
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/affiliate-lead-service")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	overrides := map[string]string{
		"POSTGRES_DSN":           "database.postgresDSN",
		"LOG_LEVEL":              "logLevel",
		"NATS_URL":               "nats.url",
		"REDIS_URL":              "redis.url",
		"COOKIE_HASH_KEY":        "attribution.hashKey",
		"COOKIE_BLOCK_KEY":       "attribution.blockKey",
		"WHATSAPP_GATEWAY_TOKEN": "gateway.token",
		"SENDGRID_API_KEY":       "alert.sendgridKey",
	}
	for env, key := range overrides {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgresDSN is required"))
	}
	if len(c.Attribution.HashKey) < 32 {
		errs = append(errs, errors.New("attribution.hashKey must be at least 32 bytes"))
	}
	if n := len(c.Attribution.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		errs = append(errs, errors.New("attribution.blockKey must be 16, 24 or 32 bytes"))
	}
	if c.Notification.FailureThreshold <= 0 {
		errs = append(errs, errors.New("notification.failureThreshold must be positive"))
	}
	if c.Notification.FailureWindow <= 0 {
		errs = append(errs, errors.New("notification.failureWindow must be positive"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}
	switch c.Gateway.Provider {
	case "http", "twilio":
	default:
		errs = append(errs, fmt.Errorf("gateway.provider %q is not supported", c.Gateway.Provider))
	}
	switch c.Alert.Provider {
	case "smtp", "sendgrid":
	default:
		errs = append(errs, fmt.Errorf("alert.provider %q is not supported", c.Alert.Provider))
	}
	return errors.Join(errs...)
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(append([]string{}, parts...), tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
