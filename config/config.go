package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const (
	FetcherBrowser = "browser"
	FetcherHTTP    = "http"

	SinkJSON     = "json"
	SinkPostgres = "postgres"
	SinkMongo    = "mongo"

	LedgerSQLite = "sqlite"
	LedgerFile   = "file"
)

// Config holds the environment settings plus the declarative scrape plan
// read from the YAML file.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	Sink          string
	JSONOutputDir string

	Ledger     string
	LedgerPath string

	LogLevel string
	LogDir   string

	ConfigPath string

	Scraper ScraperConfig
	Targets []Target
}

// ScraperConfig tunes the fetch session and pacing.
type ScraperConfig struct {
	Headless        bool       `yaml:"headless"`
	Fetcher         string     `yaml:"fetcher"`
	ChromeBin       string     `yaml:"chrome_bin"`
	ItemDelay       DelayRange `yaml:"item_delay"`
	PageDelay       DelayRange `yaml:"page_delay"`
	WaitTimeout     int        `yaml:"wait_timeout"`
	PageLoadTimeout int        `yaml:"page_load_timeout"`
	MaxRetries      int        `yaml:"max_retries"`
}

// DelayRange is a pause drawn uniformly from [Min, Max] seconds.
type DelayRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Durations returns the range as durations, with Max clamped to Min.
func (d DelayRange) Durations() (time.Duration, time.Duration) {
	lo := time.Duration(d.Min * float64(time.Second))
	hi := time.Duration(d.Max * float64(time.Second))
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// WaitTimeoutDuration is the bounded element wait.
func (s ScraperConfig) WaitTimeoutDuration() time.Duration {
	return time.Duration(s.WaitTimeout) * time.Second
}

// PageLoadTimeoutDuration bounds a single navigation.
func (s ScraperConfig) PageLoadTimeoutDuration() time.Duration {
	return time.Duration(s.PageLoadTimeout) * time.Second
}

// Target is one listing search to crawl, page by page.
type Target struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	StartPage int    `yaml:"start_page"`
	EndPage   int    `yaml:"end_page"`
	Enabled   *bool  `yaml:"enabled"`
}

// IsEnabled defaults to true when the flag is not set.
func (t Target) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Load reads the .env file and the YAML scrape plan and returns a populated
// Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "property_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "property"),
		MongoCollection: getEnv("MONGO_COLLECTION", "posts"),

		Sink:          strings.ToLower(getEnv("SINK", SinkJSON)),
		JSONOutputDir: getEnv("JSON_OUTPUT_DIR", "./output"),

		Ledger:     strings.ToLower(getEnv("LEDGER", LedgerSQLite)),
		LedgerPath: getEnv("LEDGER_PATH", "data/scraping_status.db"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", "./logs"),

		ConfigPath: getEnv("CONFIG_PATH", "config.yaml"),
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Errorf("config: %s not found", cfg.ConfigPath)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", cfg.ConfigPath)
	}
	if err := cfg.parsePlan(data); err != nil {
		return nil, err
	}

	cfg.Scraper.Headless = getEnvBool("SCRAPER_HEADLESS", cfg.Scraper.Headless)
	cfg.Scraper.Fetcher = strings.ToLower(getEnv("SCRAPER_FETCHER", cfg.Scraper.Fetcher))
	cfg.Scraper.ChromeBin = getEnv("CHROME_BIN", cfg.Scraper.ChromeBin)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePlan decodes the YAML document over the defaults.
func (c *Config) parsePlan(data []byte) error {
	plan := struct {
		Scraper ScraperConfig `yaml:"scraper"`
		Targets []Target      `yaml:"targets"`
	}{Scraper: DefaultScraperConfig()}

	if err := yaml.Unmarshal(data, &plan); err != nil {
		return eris.Wrapf(err, "config: parse %s", c.ConfigPath)
	}

	for i := range plan.Targets {
		t := &plan.Targets[i]
		if t.StartPage <= 0 {
			t.StartPage = 1
		}
		if t.EndPage <= 0 {
			t.EndPage = 2
		}
	}

	c.Scraper = plan.Scraper
	c.Targets = plan.Targets
	return nil
}

// DefaultScraperConfig is used for any key the YAML file leaves out.
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Headless:        true,
		Fetcher:         FetcherBrowser,
		ItemDelay:       DelayRange{Min: 2, Max: 4},
		PageDelay:       DelayRange{Min: 3, Max: 6},
		WaitTimeout:     15,
		PageLoadTimeout: 60,
		MaxRetries:      2,
	}
}

// Validate rejects plans that cannot run.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return eris.Errorf("config: no targets in %s", c.ConfigPath)
	}
	for i, t := range c.Targets {
		if strings.TrimSpace(t.URL) == "" {
			return eris.Errorf("config: target %d (%q) has no url", i, t.Name)
		}
		if t.EndPage < t.StartPage {
			return eris.Errorf("config: target %q ends (page %d) before it starts (page %d)", t.Name, t.EndPage, t.StartPage)
		}
	}
	switch c.Scraper.Fetcher {
	case FetcherBrowser, FetcherHTTP:
	default:
		return eris.Errorf("config: unknown fetcher %q", c.Scraper.Fetcher)
	}
	switch c.Sink {
	case SinkJSON, SinkPostgres, SinkMongo:
	default:
		return eris.Errorf("config: unknown sink %q", c.Sink)
	}
	switch c.Ledger {
	case LedgerSQLite, LedgerFile:
	default:
		return eris.Errorf("config: unknown ledger %q", c.Ledger)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
