package config

import (
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type WSConfig struct {
	SendQueueSize int           `yaml:"send_queue_size" mapstructure:"send_queue_size"`
	PingInterval  time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	WriteWait     time.Duration `yaml:"write_wait" mapstructure:"write_wait"`
	IdleTTL       time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
	SweepEvery    time.Duration `yaml:"sweep_every" mapstructure:"sweep_every"`
}

type MongoConfig struct {
	URI         string `yaml:"uri" mapstructure:"uri"`
	Database    string `yaml:"database" mapstructure:"database"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	MaxPoolSize uint64 `yaml:"max_pool_size" mapstructure:"max_pool_size"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

type NatsConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	URL          string `yaml:"url" mapstructure:"url"`
	EmailSubject string `yaml:"email_subject" mapstructure:"email_subject"`
	QueueSize    int    `yaml:"queue_size" mapstructure:"queue_size"`
}

type AppConfig struct {
	NodeID         int64        `yaml:"node_id" mapstructure:"node_id"`
	Port           int          `yaml:"port" mapstructure:"port"`
	JWTSecret      string       `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	AllowedOrigins []string     `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	WS             WSConfig     `yaml:"ws" mapstructure:"ws"`
	Mongo          MongoConfig  `yaml:"mongo" mapstructure:"mongo"`
	Redis          RedisConfig  `yaml:"redis" mapstructure:"redis"`
	Nats           NatsConfig   `yaml:"nats" mapstructure:"nats"`
}

func Default() AppConfig {
	return AppConfig{
		NodeID: 1,
		Port:   8080,
		WS: WSConfig{
			SendQueueSize: 256,
			PingInterval:  25 * time.Second,
			WriteWait:     10 * time.Second,
			IdleTTL:       75 * time.Second,
			SweepEvery:    10 * time.Second,
		},
		Mongo: MongoConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "taskflow",
			MaxPoolSize: 20,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Nats: NatsConfig{
			URL:          "nats://127.0.0.1:4222",
			EmailSubject: "taskflow.email.jobs",
			QueueSize:    1024,
		},
	}
}

// Load builds the config from defaults, then an optional yaml file,
// then TF_* environment overrides.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		// yaml lands in a map first so durations like "90s" decode
		// through the same lenient hook the env overlay uses
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
		if err := decodeInto(&cfg, tree); err != nil {
			return cfg, errors.Wrapf(err, "apply config %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeInto(cfg *AppConfig, src map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "config decoder")
	}
	return dec.Decode(src)
}

// applyEnv overlays TF_* variables, e.g. TF_PORT=9090,
// TF_MONGO_URI=..., TF_REDIS_ADDR=... Nested keys use underscores.
func applyEnv(cfg *AppConfig) error {
	overlay := map[string]any{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "TF_") {
			continue
		}
		setPath(overlay, strings.Split(strings.ToLower(strings.TrimPrefix(k, "TF_")), "_"), v)
	}
	if len(overlay) == 0 {
		return nil
	}
	return errors.Wrap(decodeInto(cfg, overlay), "apply env overrides")
}

// setPath walks key segments, merging trailing segments so that e.g.
// MONGO_MAX_POOL_SIZE lands on mongo.max_pool_size.
func setPath(m map[string]any, segs []string, v string) {
	if len(segs) == 1 {
		m[segs[0]] = v
		return
	}
	head := segs[0]
	child, ok := m[head].(map[string]any)
	if !ok {
		// try the joined form first: flat keys like jwt_secret
		joined := strings.Join(segs, "_")
		if _, exists := m[joined]; !exists && isSection(head) {
			child = map[string]any{}
			m[head] = child
			setPath(child, []string{strings.Join(segs[1:], "_")}, v)
			return
		}
		m[joined] = v
		return
	}
	setPath(child, []string{strings.Join(segs[1:], "_")}, v)
}

func isSection(name string) bool {
	switch name {
	case "ws", "mongo", "redis", "nats":
		return true
	}
	return false
}
