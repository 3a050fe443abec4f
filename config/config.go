package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//ListenerConfig 一个监听端口的配置
type ListenerConfig struct {
	Address   string        `yaml:"address"`
	Port      int           `yaml:"port"`
	Backlog   int           `yaml:"backlog"`   // 0表示读取somaxconn
	KeepAlive time.Duration `yaml:"keepalive"` // 例如 30s，0表示不开启
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug/info/warn/error
	Format string `yaml:"format"` // json/text
	Path   string `yaml:"path"`   // 为空输出到stderr
}

//Config 进程配置
type Config struct {
	Workers int            `yaml:"workers"` // 0表示使用GOMAXPROCS
	Server  ListenerConfig `yaml:"server"`
	API     ListenerConfig `yaml:"api"`
	Log     LogConfig      `yaml:"log"`
}

//Default 默认配置
func Default() *Config {
	return &Config{
		Server: ListenerConfig{Address: "127.0.0.1", Port: 9600},
		API:    ListenerConfig{Address: "127.0.0.1", Port: 8080},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

//Load 读取yaml配置文件，未配置的项使用默认值，path为空时直接返回默认配置
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

//Parse 解析yaml
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}

	for name, l := range map[string]ListenerConfig{"server": c.Server, "api": c.API} {
		if l.Address == "" {
			return fmt.Errorf("config: %s.address is required", name)
		}
		if l.Port < 0 || l.Port > 65535 {
			return fmt.Errorf("config: %s.port out of range: %d", name, l.Port)
		}
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}
