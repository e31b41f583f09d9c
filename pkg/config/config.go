package config

import "time"

// ChatClient definition chat_client YAML structure
type ChatClient struct {
	Scheme string `mapstructure:"scheme"`
	Host   string `mapstructure:"host"`
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
	SelfID string `mapstructure:"self_id"`

	Reconnect ReconnectConfig `mapstructure:"reconnect"`

	HistoryTimeout time.Duration `mapstructure:"history_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
}

// ReconnectConfig definition reconnect backoff setting
type ReconnectConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ChatRelay definition chat_relay YAML structure
type ChatRelay struct {
	Port         string        `mapstructure:"port"`
	HistoryLimit int64         `mapstructure:"history_limit"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	Pprof        bool          `mapstructure:"pprof"`

	MongoSQL DatabaseConfig `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// RedisConfig definition redis setting
// Addr 有值時使用單節點, 否則使用 .env 內的 sentinel 設定
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryCount    int      `mapstructure:"retry_count"`
	RetryInterval int      `mapstructure:"retry_interval"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// DefaultReconnect max 5 attempts, 1s doubling up to 30s
func DefaultReconnect() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// DefaultChatClient fill zero values with the default client setting
func DefaultChatClient(c ChatClient) ChatClient {
	if c.Scheme == "" {
		c.Scheme = "ws"
	}
	def := DefaultReconnect()
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = def.MaxAttempts
	}
	if c.Reconnect.BaseDelay <= 0 {
		c.Reconnect.BaseDelay = def.BaseDelay
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = def.MaxDelay
	}
	if c.HistoryTimeout <= 0 {
		c.HistoryTimeout = 3 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// DefaultChatRelay fill zero values with the default relay setting
func DefaultChatRelay(c ChatRelay) ChatRelay {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 200
	}
	if c.PingInterval <= 0 {
		c.PingInterval = time.Minute
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "chat.notifications"
	}
	return c
}
