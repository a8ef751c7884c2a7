package client

import (
	"crypto/tls"
	"errors"
	"flag"
	"math"
	"strings"
	"time"

	"github.com/mkocikowski/simplekafka"
)

var (
	ErrMissingBootstrap        = errors.New("bootstrap address is required")
	ErrInvalidMaxResponseBytes = errors.New("max response bytes must be between 0 and math.MaxInt32")
	ErrInvalidAcks             = errors.New("produce acks must be one of -1, 0, 1")
	ErrInvalidFetchBytes       = errors.New("fetch min bytes must not exceed fetch max bytes")
	ErrInvalidCacheSize        = errors.New("metadata cache size must be positive")
)

// Config for the Client. Zero values of durations mean no timeout.
type Config struct {
	// Bootstrap is a comma separated list of host:port pairs or SRV names.
	Bootstrap   string        `yaml:"bootstrap"`
	ClientID    string        `yaml:"client_id"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// WriteTimeout bounds writing a single request frame to a broker.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// MaxResponseBytes is the largest response frame accepted from a
	// broker. Larger frames fault the connection. 0 means no limit.
	MaxResponseBytes int `yaml:"max_response_bytes"`
	// MetadataMaxAge is how long topic leaders and group coordinators are
	// cached.
	MetadataMaxAge time.Duration `yaml:"metadata_max_age"`
	// MetadataCacheSize is the number of topics (and separately groups)
	// cached.
	MetadataCacheSize int `yaml:"metadata_cache_size"`

	TLSEnabled            bool `yaml:"tls_enabled"`
	TLSInsecureSkipVerify bool `yaml:"tls_insecure_skip_verify"`
	// TLS overrides the config built from the TLS* fields.
	TLS *tls.Config `yaml:"-"`

	ProduceAcks    int           `yaml:"produce_acks"`
	ProduceTimeout time.Duration `yaml:"produce_timeout"`

	FetchMinBytes int           `yaml:"fetch_min_bytes"`
	FetchMaxBytes int           `yaml:"fetch_max_bytes"`
	FetchMaxWait  time.Duration `yaml:"fetch_max_wait"`

	// CommitRetention is how long the broker keeps committed offsets. 0
	// means the broker default.
	CommitRetention time.Duration `yaml:"commit_retention"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("kafka.", f)
}

func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Bootstrap, prefix+"bootstrap", "localhost:9092", "Comma separated list of broker host:port pairs or SRV names.")
	f.StringVar(&cfg.ClientID, prefix+"client-id", simplekafka.DefaultClientId, "Client id sent with every request.")
	f.DurationVar(&cfg.DialTimeout, prefix+"dial-timeout", 2*time.Second, "Timeout for connecting to a broker.")
	f.DurationVar(&cfg.WriteTimeout, prefix+"write-timeout", 10*time.Second, "Timeout for writing a request to a broker.")
	f.IntVar(&cfg.MaxResponseBytes, prefix+"max-response-bytes", 100<<20, "Largest response accepted from a broker. 0 means no limit.")
	f.DurationVar(&cfg.MetadataMaxAge, prefix+"metadata-max-age", time.Minute, "How long topic leaders and group coordinators are cached.")
	f.IntVar(&cfg.MetadataCacheSize, prefix+"metadata-cache-size", 1024, "Number of topics and groups with cached metadata.")
	f.BoolVar(&cfg.TLSEnabled, prefix+"tls-enabled", false, "Connect to brokers with TLS.")
	f.BoolVar(&cfg.TLSInsecureSkipVerify, prefix+"tls-insecure-skip-verify", false, "Skip broker certificate verification.")
	f.IntVar(&cfg.ProduceAcks, prefix+"produce-acks", 1, "Produce acks: 0 (no response), 1 (leader), -1 (all in sync replicas).")
	f.DurationVar(&cfg.ProduceTimeout, prefix+"produce-timeout", 5*time.Second, "How long the broker waits for produce acks.")
	f.IntVar(&cfg.FetchMinBytes, prefix+"fetch-min-bytes", 1, "Fetch min bytes.")
	f.IntVar(&cfg.FetchMaxBytes, prefix+"fetch-max-bytes", 1<<20, "Fetch max bytes.")
	f.DurationVar(&cfg.FetchMaxWait, prefix+"fetch-max-wait", 500*time.Millisecond, "How long the broker waits for fetch min bytes.")
	f.DurationVar(&cfg.CommitRetention, prefix+"commit-retention", 0, "How long the broker retains committed offsets. 0 means the broker default.")
}

// DefaultConfig returns the config with flag default values.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("", flag.PanicOnError))
	return cfg
}

func (cfg *Config) Validate() error {
	if len(cfg.BootstrapAddrs()) == 0 {
		return ErrMissingBootstrap
	}
	if cfg.MaxResponseBytes < 0 || cfg.MaxResponseBytes > math.MaxInt32 {
		return ErrInvalidMaxResponseBytes
	}
	if cfg.MetadataCacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	switch cfg.ProduceAcks {
	case -1, 0, 1:
	default:
		return ErrInvalidAcks
	}
	if cfg.FetchMinBytes > cfg.FetchMaxBytes {
		return ErrInvalidFetchBytes
	}
	return nil
}

// BootstrapAddrs splits Bootstrap into its (trimmed, non empty) entries.
func (cfg *Config) BootstrapAddrs() []string {
	var addrs []string
	for _, s := range strings.Split(cfg.Bootstrap, ",") {
		if s = strings.TrimSpace(s); s != "" {
			addrs = append(addrs, s)
		}
	}
	return addrs
}

func (cfg *Config) clientId() string {
	if cfg.ClientID == "" {
		return simplekafka.DefaultClientId
	}
	return cfg.ClientID
}

func (cfg *Config) tlsConfig() *tls.Config {
	if cfg.TLS != nil {
		return cfg.TLS
	}
	if !cfg.TLSEnabled {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: cfg.TLSInsecureSkipVerify}
}

func (cfg *Config) commitRetentionMs() int64 {
	if cfg.CommitRetention <= 0 {
		return -1
	}
	return cfg.CommitRetention.Milliseconds()
}
