package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultProbeTimeout   = 10 * time.Second
	defaultCatalogTimeout = 30 * time.Second
	defaultMaxBodyBytes   = 10 << 20
	defaultConcurrency    = 4
	defaultListenAddress  = "127.0.0.1:8050"
	writeSlack            = 10 * time.Second
)

type Probe struct {
	Timeout      Duration `yaml:"timeout"`
	UserAgent    string   `yaml:"userAgent"`
	MaxBodyBytes int64    `yaml:"maxBodyBytes"`
	Versions     []string `yaml:"versions"`
}

type Catalog struct {
	BaseURL string   `yaml:"baseUrl"`
	APIKey  string   `yaml:"apiKey"`
	Timeout Duration `yaml:"timeout"`
}

type Annotate struct {
	Concurrency int `yaml:"concurrency"`
}

type LogBackend struct {
	BaseURL string `yaml:"baseUrl"`
}

type Config struct {
	ListenAddress string `yaml:"listenAddress"`
	ListenTLS     struct {
		Certificate string `yaml:"certificate"`
		Key         string `yaml:"key"`
	} `yaml:"listenTls"`
	JwksURL         string     `yaml:"jwksUrl"`
	AllowedGroups   []string   `yaml:"allowedGroups"`
	ResponseRewrite string     `yaml:"responseRewrite"`
	LogLevel        string     `yaml:"logLevel"`
	LogBackend      LogBackend `yaml:"logBackend"`
	Probe           Probe      `yaml:"probe"`
	Catalog         Catalog    `yaml:"catalog"`
	Annotate        Annotate   `yaml:"annotate"`
}

// Duration is a time.Duration written as a Go duration string in yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// NewConfig returns a new decoded Config struct
func NewConfig(configPath string) (*Config, error) {
	// Create config structure
	config := &Config{}

	// Open config file
	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Init new YAML decode
	d := yaml.NewDecoder(file)

	// Start YAML decoding from file
	if err := d.Decode(&config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	return config, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()

	return config
}

// AnnotateRequestTimeout is the longest a single annotation can take: one
// capabilities fetch per version plus the base URL fetch, then a catalog show
// and update, with some slack for writing the response.
func (c *Config) AnnotateRequestTimeout() time.Duration {
	fetches := time.Duration(len(c.Probe.Versions)+1) * time.Duration(c.Probe.Timeout)
	catalog := 2 * time.Duration(c.Catalog.Timeout)

	return fetches + catalog + writeSlack
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = Duration(defaultProbeTimeout)
	}
	if c.Probe.MaxBodyBytes <= 0 {
		c.Probe.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(c.Probe.Versions) == 0 {
		c.Probe.Versions = []string{"1.3.0", "1.1.1"}
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = Duration(defaultCatalogTimeout)
	}
	if c.Annotate.Concurrency <= 0 {
		c.Annotate.Concurrency = defaultConcurrency
	}
}
