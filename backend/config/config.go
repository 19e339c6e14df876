package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Replay struct {
		// 会话 id，为空时自动生成
		Session   string        `mapstructure:"session"`
		CharDelay time.Duration `mapstructure:"charDelay"`
	} `mapstructure:"replay"`
	Producer struct {
		StreamURL   string        `mapstructure:"streamURL"`
		RunURL      string        `mapstructure:"runURL"`
		BaseBackoff time.Duration `mapstructure:"baseBackoff"`
		MaxBackoff  time.Duration `mapstructure:"maxBackoff"`
	} `mapstructure:"producer"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
		Channel  string   `mapstructure:"channel"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers     []string      `mapstructure:"brokers"`
		Topic       string        `mapstructure:"topic"`
		QueueSize   int           `mapstructure:"queueSize"`
		Workers     int           `mapstructure:"workers"`
		MaxRetry    int           `mapstructure:"maxRetry"`
		BaseBackoff time.Duration `mapstructure:"baseBackoff"`
		MaxBackoff  time.Duration `mapstructure:"maxBackoff"`
		// 同时在途的 SendMessage 上限
		MaxInFlight int `mapstructure:"maxInFlight"`
	} `mapstructure:"kafka"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Auth struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"auth"`
	Cors struct {
		AllowOrigins []string `mapstructure:"allowOrigins"`
	} `mapstructure:"cors"`
}

func setDefaults(v *viper.Viper) {
	// 每个键都要有默认值，AutomaticEnv 才能在 Unmarshal 时覆盖
	v.SetDefault("running.port", 8080)
	v.SetDefault("replay.session", "")
	v.SetDefault("replay.charDelay", 2*time.Millisecond)
	v.SetDefault("producer.streamURL", "")
	v.SetDefault("producer.runURL", "")
	v.SetDefault("producer.baseBackoff", 500*time.Millisecond)
	v.SetDefault("producer.maxBackoff", 30*time.Second)
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.channel", "replay:events")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "replay.events")
	v.SetDefault("kafka.queueSize", 10_000)
	v.SetDefault("kafka.workers", 4)
	v.SetDefault("kafka.maxRetry", 3)
	v.SetDefault("kafka.baseBackoff", 50*time.Millisecond)
	v.SetDefault("kafka.maxBackoff", time.Second)
	v.SetDefault("kafka.maxInFlight", 100)
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("cors.allowOrigins", []string{})
}

// Load 读取 replayConfig.yaml；paths 为空时兼容从项目根目录或 backend 目录启动。
// 找不到配置文件时只用默认值和 REPLAY_* 环境变量。
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("replayConfig")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./backend/config", "./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// REPLAY_PRODUCER_STREAMURL=ws://... 覆盖 producer.streamURL
	v.SetEnvPrefix("REPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
