package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string      `yaml:"log_level"`
	GstLogLevel int         `yaml:"gst_log_level"`
	Redis       RedisConfig `yaml:"redis"`
	S3          S3Config    `yaml:"s3"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	UseTLS   bool   `yaml:"use_tls"`
}

// S3Config enables upload of the finished recording when BucketURL is set,
// in the form s3://bucket/key or bucket/key.
type S3Config struct {
	AccessKey string `yaml:"access_key"`
	Secret    string `yaml:"secret"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	BucketURL string `yaml:"bucket_url"`
}

func NewConfig(confString string) (*Config, error) {
	// start with defaults
	conf := &Config{
		LogLevel:    "info",
		GstLogLevel: 2,
	}

	if confString != "" {
		if err := yaml.Unmarshal([]byte(confString), conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if conf.GstLogLevel < 0 || conf.GstLogLevel > 9 {
		return nil, fmt.Errorf("invalid gst_log_level %d (must be 0-9)", conf.GstLogLevel)
	}

	// GStreamer reads GST_DEBUG when it initializes
	if os.Getenv("GST_DEBUG") == "" {
		if err := os.Setenv("GST_DEBUG", fmt.Sprint(conf.GstLogLevel)); err != nil {
			return nil, err
		}
	}

	return conf, nil
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}

func (c *Config) UploadEnabled() bool {
	return c.S3.BucketURL != ""
}

func TestConfig() *Config {
	return &Config{
		LogLevel: "debug",
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
	}
}
