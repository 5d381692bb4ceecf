// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。配置文件是可选的，缺省时使用 Default()。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgent 为抓取时固定使用的浏览器 UA。
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; rv:60.0) Gecko/20100101 Firefox/60.0"

// DefaultImagePattern 匹配空 alt 的远程图片：![](https://...)，第 1 组为 URL。
const DefaultImagePattern = `!\[\]\((https?://[^\s)]+)\)`

// 文章目录使用的 entry 来源。
const (
	EntryFromMetadata = "metadata"
	EntryFromCursor   = "cursor"
)

type Config struct {
	Scheme         string   `yaml:"SCHEME"`
	FeedPath       string   `yaml:"FEED_PATH"`
	ArchiveRoot    string   `yaml:"ARCHIVE_ROOT"` // 为空时使用 host
	DocName        string   `yaml:"DOC_NAME"`
	UserAgent      string   `yaml:"USER_AGENT"`
	RequestDelayMS int      `yaml:"REQUEST_DELAY_MS"`
	TimeoutSec     int      `yaml:"TIMEOUT_SEC"`
	ImagePattern   string   `yaml:"IMAGE_PATTERN"`
	EntrySource    string   `yaml:"ENTRY_SOURCE"` // metadata|cursor
	RulesPreset    string   `yaml:"RULES_PRESET"`
	SimpleMode     bool     `yaml:"SIMPLE_MODE"`
	Manifest       string   `yaml:"MANIFEST"`
	Database       Database `yaml:"DATABASE"`
	Proxy          Proxy    `yaml:"PROXY"`
	LogLevel       string   `yaml:"LOG_LEVEL"`
	LogFormat      string   `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale      string   `yaml:"LOG_LOCALE"` // zh-CN|en|ko
	LogColor       string   `yaml:"LOG_COLOR"`  // auto|always|never
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // 为空时为 <archive root>/archive.db
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Load 从文件读取 YAML 并反序列化为 Config，同时进行校验与默认值填充。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default 返回全部使用默认值的配置。
func Default() *Config {
	c := &Config{}
	// 零值配置必然通过校验
	_ = c.Validate()
	return c
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	if c.RequestDelayMS < 0 {
		return errors.New("REQUEST_DELAY_MS must be >= 0")
	}
	if c.TimeoutSec < 0 {
		return errors.New("TIMEOUT_SEC must be >= 0")
	}
	switch c.Scheme {
	case "":
		c.Scheme = "http"
	case "http", "https":
	default:
		return fmt.Errorf("unsupported scheme: %s", c.Scheme)
	}
	if c.FeedPath == "" {
		c.FeedPath = "/rss"
	}
	if c.DocName == "" {
		c.DocName = "index.md"
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestDelayMS == 0 {
		c.RequestDelayMS = 100
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 25
	}
	if c.ImagePattern == "" {
		c.ImagePattern = DefaultImagePattern
	}
	re, err := regexp.Compile(c.ImagePattern)
	if err != nil {
		return fmt.Errorf("IMAGE_PATTERN: %w", err)
	}
	if re.NumSubexp() < 1 {
		return errors.New("IMAGE_PATTERN must capture the image url in group 1")
	}
	switch c.EntrySource {
	case "":
		c.EntrySource = EntryFromMetadata
	case EntryFromMetadata, EntryFromCursor:
	default:
		return fmt.Errorf("unsupported ENTRY_SOURCE: %s", c.EntrySource)
	}
	if c.Manifest == "" {
		c.Manifest = "manifest.json"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// BaseURL 拼出博客根地址，例如 http://example.tistory.com。
func (c *Config) BaseURL(host string) string {
	return c.Scheme + "://" + host
}

// Root 返回归档根目录：ARCHIVE_ROOT 优先，否则为 host。
func (c *Config) Root(host string) string {
	if c.ArchiveRoot != "" {
		return c.ArchiveRoot
	}
	return host
}

// ProxyURL 按抓取协议选择代理，https 未配置时回退到 http 代理。
func (c *Config) ProxyURL() string {
	if c.Scheme == "https" && c.Proxy.HTTPS != "" {
		return c.Proxy.HTTPS
	}
	return c.Proxy.HTTP
}

// DatabasePath 返回台账数据库路径，默认位于归档根目录下。
func (c *Config) DatabasePath(host string) string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return filepath.Join(c.Root(host), "archive.db")
}

// ManifestPath 返回清单路径；相对路径相对于归档根目录。
func (c *Config) ManifestPath(host string) string {
	if filepath.IsAbs(c.Manifest) {
		return c.Manifest
	}
	return filepath.Join(c.Root(host), c.Manifest)
}
