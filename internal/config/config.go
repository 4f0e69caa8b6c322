package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	GoBGP    GoBGPConfig    `koanf:"gobgp"`
	Poll     PollConfig     `koanf:"poll"`
	Postgres PostgresConfig `koanf:"postgres"`
	Kafka    KafkaConfig    `koanf:"kafka"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

type GoBGPConfig struct {
	// Target is the daemon's gRPC administrative endpoint.
	Target                string `koanf:"target"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds"`
}

type PollConfig struct {
	IntervalSeconds int `koanf:"interval_seconds"`
}

// PostgresConfig drives the optional snapshot archive.
type PostgresConfig struct {
	Enabled            bool   `koanf:"enabled"`
	DSN                string `koanf:"dsn"`
	MaxConns           int32  `koanf:"max_conns"`
	MinConns           int32  `koanf:"min_conns"`
	StoreRawPayload    bool   `koanf:"store_raw_payload"`
	CompressRawPayload bool   `koanf:"compress_raw_payload"`
	RetentionDays      int    `koanf:"retention_days"`
}

// KafkaConfig drives the optional decoded-route publisher.
type KafkaConfig struct {
	Enabled  bool       `koanf:"enabled"`
	Brokers  []string   `koanf:"brokers"`
	Topic    string     `koanf:"topic"`
	ClientID string     `koanf:"client_id"`
	TLS      TLSConfig  `koanf:"tls"`
	SASL     SASLConfig `koanf:"sasl"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML file first.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: RIB_GATEWAY_GOBGP__TARGET → gobgp.target
	if err := k.Load(env.Provider("RIB_GATEWAY_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "RIB_GATEWAY_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "rib-gateway-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		GoBGP: GoBGPConfig{
			Target:                "127.0.0.1:50051",
			RequestTimeoutSeconds: 30,
		},
		Poll: PollConfig{
			IntervalSeconds: 30,
		},
		Postgres: PostgresConfig{
			MaxConns:           10,
			MinConns:           1,
			CompressRawPayload: true,
			RetentionDays:      30,
		},
		Kafka: KafkaConfig{
			ClientID: "rib-gateway",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split comma-separated env strings for slice fields.
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.GoBGP.Target == "" {
		return fmt.Errorf("config: gobgp.target is required")
	}
	if c.GoBGP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("config: gobgp.request_timeout_seconds must be > 0 (got %d)", c.GoBGP.RequestTimeoutSeconds)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("config: poll.interval_seconds must be > 0 (got %d)", c.Poll.IntervalSeconds)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.Postgres.Enabled {
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres.dsn is required when postgres.enabled")
		}
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
		}
		if c.Postgres.MinConns < 0 {
			return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
		}
		if c.Postgres.RetentionDays <= 0 {
			return fmt.Errorf("config: postgres.retention_days must be > 0 (got %d)", c.Postgres.RetentionDays)
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers is required when kafka.enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka.enabled")
		}
	}
	return nil
}

// BuildTLSConfig creates a *tls.Config from the Kafka TLS settings. Returns nil if TLS is disabled.
func (k *KafkaConfig) BuildTLSConfig() (*tls.Config, error) {
	if !k.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if k.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(k.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if k.TLS.CertFile != "" && k.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(k.TLS.CertFile, k.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the Kafka SASL settings. Returns nil if SASL is disabled.
func (k *KafkaConfig) BuildSASLMechanism() sasl.Mechanism {
	if !k.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(k.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: k.SASL.Username, Pass: k.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}
