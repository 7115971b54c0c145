package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port               string `mapstructure:"port"`
	ReadTimeoutSecs    int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSecs   int    `mapstructure:"write_timeout_seconds"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	Development        bool   `mapstructure:"development"`
}

type MongoCfg struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers     []string `mapstructure:"brokers"`
	EventsTopic string   `mapstructure:"events_topic"`
}

type JWTCfg struct {
	Secret       string `mapstructure:"secret"`
	ExpiryDays   int    `mapstructure:"expiry_days"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
}

type EmailCfg struct {
	APIKey      string `mapstructure:"api_key"`
	SenderEmail string `mapstructure:"sender_email"`
	SenderName  string `mapstructure:"sender_name"`
	BaseURL     string `mapstructure:"base_url"`
}

type S3Cfg struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	Endpoint   string `mapstructure:"endpoint"`
	PublicRead bool   `mapstructure:"public_read"`
}

// NotificationCfg holds every delivery gate resolved once at startup.
// Handlers receive the struct by reference and never re-read the
// environment per call.
type NotificationCfg struct {
	PushEnabled            bool `mapstructure:"push_enabled"`
	SocketEnabled          bool `mapstructure:"socket_enabled"`
	OfflinePushEnabled     bool `mapstructure:"offline_push_enabled"`
	StoreUndelivered       bool `mapstructure:"store_undelivered"`
	NewMessageEnabled      bool `mapstructure:"new_message_enabled"`
	FriendRequestEnabled   bool `mapstructure:"friend_request_enabled"`
	FriendAcceptEnabled    bool `mapstructure:"friend_accept_enabled"`
	AccountActivityEnabled bool `mapstructure:"account_activity_enabled"`
	MaxDeviceTokens        int  `mapstructure:"max_device_tokens"`

	PushServerKey string `mapstructure:"push_server_key"`
}

type Config struct {
	Server       ServerCfg       `mapstructure:"server"`
	Mongo        MongoCfg        `mapstructure:"mongo"`
	Redis        RedisCfg        `mapstructure:"redis"`
	Kafka        KafkaCfg        `mapstructure:"kafka"`
	JWT          JWTCfg          `mapstructure:"jwt"`
	Email        EmailCfg        `mapstructure:"email"`
	S3           S3Cfg           `mapstructure:"s3"`
	Notification NotificationCfg `mapstructure:"notification"`

	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StoreTimeout time.Duration
	TokenExpiry  time.Duration
}

// Load reads config.yaml (path optional) with APP_ environment overrides,
// e.g. APP_SERVER_PORT, APP_NOTIFICATION_PUSH_ENABLED.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second
	cfg.StoreTimeout = time.Duration(cfg.Mongo.TimeoutSecs) * time.Second
	cfg.TokenExpiry = time.Duration(cfg.JWT.ExpiryDays) * 24 * time.Hour
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.rate_limit_per_minute", 120)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "talko")
	v.SetDefault("mongo.timeout_seconds", 10)
	v.SetDefault("redis.prefix", "talko")
	v.SetDefault("kafka.events_topic", "talko_events")
	v.SetDefault("jwt.expiry_days", 7)
	v.SetDefault("notification.socket_enabled", true)
	v.SetDefault("notification.offline_push_enabled", true)
	v.SetDefault("notification.store_undelivered", true)
	v.SetDefault("notification.new_message_enabled", true)
	v.SetDefault("notification.friend_request_enabled", true)
	v.SetDefault("notification.friend_accept_enabled", true)
	v.SetDefault("notification.account_activity_enabled", true)
	v.SetDefault("notification.max_device_tokens", 5)
}
