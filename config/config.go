package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Collector struct {
		Protocol     string
		SitemapPath  string
		URLPattern   string
		UserAgent    string
		Timeout      time.Duration
		Deadline     time.Duration
		MaxRetries   int
		RetryBackoff time.Duration
		MaxBackoff   time.Duration
		MaxBodySize  int
		Interactive  bool
		Strict       bool
	}
	Index struct {
		Pattern string
		Format  string
		CRLF    bool
	}
	Storage struct {
		DSN string
	}
	Server struct {
		Port int
	}
	Log struct {
		Dir        string
		MaxSizeMB  int
		MaxBackups int
		Verbose    bool
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("collector.protocol", "http")
	v.SetDefault("collector.sitemappath", "/sitemap.xml")
	v.SetDefault("collector.useragent", "sitemapdump/1.0")
	v.SetDefault("collector.timeout", "30s")
	v.SetDefault("collector.deadline", "0s")
	v.SetDefault("collector.maxretries", 3)
	v.SetDefault("collector.retrybackoff", "1s")
	v.SetDefault("collector.maxbackoff", "30s")
	v.SetDefault("collector.maxbodysize", 64<<20)
	v.SetDefault("index.format", "csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.maxsizemb", 10)
	v.SetDefault("log.maxbackups", 3)
}

// LoadConfig reads config.yaml from file, or from . and ./config when file is
// empty. A missing config file is not an error; SITEMAPDUMP_* environment
// variables and flags bound to v still apply.
func LoadConfig(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("sitemapdump")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Index.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("unknown index format %q (want csv or xlsx)", c.Index.Format)
	}
	if c.Collector.MaxRetries < 0 {
		return fmt.Errorf("collector.maxretries must not be negative")
	}
	if c.Collector.Timeout < 0 {
		return fmt.Errorf("collector.timeout must not be negative")
	}
	return nil
}
