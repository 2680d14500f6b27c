package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix           = "KVMDASH"
	MinRefreshInterval  = 250 * time.Millisecond
	DefaultExportMethod = "/kvmdash.events.v1.EventService/StreamEvents"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	LibvirtURI        string        `mapstructure:"libvirt_uri"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	MaxWorkers        int           `mapstructure:"max_workers"`
	StopPollInterval  time.Duration `mapstructure:"stop_poll_interval"`
	StopRetryInterval time.Duration `mapstructure:"stop_retry_interval"`
	ActionBuffer      int           `mapstructure:"action_buffer"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level"`
	LogJSON           bool          `mapstructure:"log_json"`
	LogFile           string        `mapstructure:"log_file"`
	ProbeListenAddr   string        `mapstructure:"probe_listen_addr"`
	Export            ExportConfig  `mapstructure:"export"`
	TLS               TLSConfig     `mapstructure:"tls"`
}

// ExportConfig configures the optional gRPC event stream. An empty GRPCAddr
// disables it.
type ExportConfig struct {
	GRPCAddr   string `mapstructure:"grpc_addr"`
	Method     string `mapstructure:"method"`
	Token      string `mapstructure:"token"`
	BufferSize int    `mapstructure:"buffer_size"`
	NodeID     string `mapstructure:"node_id"`
}

func (e ExportConfig) Enabled() bool {
	return strings.TrimSpace(e.GRPCAddr) != ""
}

type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SkipVerify bool   `mapstructure:"skip_verify"`
	CAPath     string `mapstructure:"ca_path"`
	CertPath   string `mapstructure:"cert_path"`
	KeyPath    string `mapstructure:"key_path"`
}

// New returns a viper instance carrying every default and reading
// KVMDASH_* environment overrides. Nested keys use underscores, so
// export.grpc_addr is KVMDASH_EXPORT_GRPC_ADDR.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	v.SetDefault("libvirt_uri", "qemu:///system")
	v.SetDefault("refresh_interval", "2s")
	v.SetDefault("max_workers", 4)
	v.SetDefault("stop_poll_interval", "500ms")
	v.SetDefault("stop_retry_interval", "10s")
	v.SetDefault("action_buffer", 64)
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("log_file", "")
	v.SetDefault("probe_listen_addr", "")
	v.SetDefault("export.grpc_addr", "")
	v.SetDefault("export.method", DefaultExportMethod)
	v.SetDefault("export.token", "")
	v.SetDefault("export.buffer_size", 256)
	v.SetDefault("export.node_id", hostname)
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.skip_verify", false)
	v.SetDefault("tls.ca_path", "")
	v.SetDefault("tls.cert_path", "")
	v.SetDefault("tls.key_path", "")
}

// Load reads the optional YAML file at path into v, decodes and validates
// the result. Flags bound into v before the call take precedence over the
// file and the environment.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.LibvirtURI) == "" {
		return fmt.Errorf("%w: libvirt_uri is required", ErrInvalid)
	}
	if c.RefreshInterval < MinRefreshInterval {
		return fmt.Errorf("%w: refresh_interval must be at least %s", ErrInvalid, MinRefreshInterval)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("%w: max_workers must be >= 1", ErrInvalid)
	}
	if c.StopPollInterval <= 0 || c.StopRetryInterval <= 0 {
		return fmt.Errorf("%w: stop intervals must be > 0", ErrInvalid)
	}
	if c.ActionBuffer < 1 {
		return fmt.Errorf("%w: action_buffer must be >= 1", ErrInvalid)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be > 0", ErrInvalid)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unsupported log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.Export.Enabled() {
		if strings.TrimSpace(c.Export.Method) == "" {
			return fmt.Errorf("%w: export.method is required when export.grpc_addr is set", ErrInvalid)
		}
		if c.Export.BufferSize < 1 {
			return fmt.Errorf("%w: export.buffer_size must be >= 1", ErrInvalid)
		}
	}
	if (c.TLS.CertPath == "") != (c.TLS.KeyPath == "") {
		return fmt.Errorf("%w: both tls.cert_path and tls.key_path are required", ErrInvalid)
	}
	return nil
}

// ClientTLS builds the export stream's TLS settings, or nil when TLS is off.
func (c Config) ClientTLS() (*tls.Config, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLS.SkipVerify}
	if c.TLS.CAPath != "" {
		caBytes, err := os.ReadFile(c.TLS.CAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLS.CertPath != "" {
		crt, err := tls.LoadX509KeyPair(c.TLS.CertPath, c.TLS.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}
