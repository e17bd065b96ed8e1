package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/logger"
	"github.com/david/cityguide/internal/roster"
)

//go:embed config.yaml
var defaultYAML embed.FS

// EnvConfigPath names the variable that points at an override config file.
const EnvConfigPath = "CITYGUIDE_CONFIG"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Roster   RosterConfig   `yaml:"roster"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	AdminSecret string `yaml:"admin_secret"`
	CORSOrigins string `yaml:"cors_origins"` // comma separated
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RosterConfig struct {
	URL            string        `yaml:"url" validate:"required,http_url"`
	Encoding       string        `yaml:"encoding"`
	Fetcher        string        `yaml:"fetcher" validate:"oneof=http colly"`
	TimeoutSeconds int           `yaml:"timeout_seconds" validate:"min=0,max=300"`
	MaxRetries     int           `yaml:"max_retries" validate:"min=0,max=10"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" validate:"min=0"`
	AcceptLanguage string        `yaml:"accept_language"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	FailureTTL     time.Duration `yaml:"failure_ttl"`
	Markers        MarkerConfig  `yaml:"markers"`
}

type MarkerConfig struct {
	ValidityStart string   `yaml:"validity_start"`
	ValidityEnd   string   `yaml:"validity_end"`
	Footer        []string `yaml:"footer"`
}

type ExpiryConfig struct {
	Grace            time.Duration `yaml:"grace"`
	Timezone         string        `yaml:"timezone"`
	SweepConcurrency int           `yaml:"sweep_concurrency" validate:"min=1,max=64"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// LoadDotEnv loads .env from the working directory when present.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads the embedded defaults, or the file named by CITYGUIDE_CONFIG,
// expands environment references and fills unset values.
func Load() (*Config, error) {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return Parse(data)
	}

	data, err := fs.ReadFile(defaultYAML, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML after expanding ${VAR} references.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8081"
	}
	if c.Roster.Encoding == "" {
		c.Roster.Encoding = roster.DefaultEncoding
	}
	if c.Roster.Fetcher == "" {
		c.Roster.Fetcher = "http"
	}
	if c.Roster.CacheTTL <= 0 {
		c.Roster.CacheTTL = roster.DefaultCacheTTL
	}
	if c.Roster.FailureTTL <= 0 {
		c.Roster.FailureTTL = roster.DefaultFailureTTL
	}
	def := roster.DefaultMarkers()
	if c.Roster.Markers.ValidityStart == "" {
		c.Roster.Markers.ValidityStart = def.ValidityStart
	}
	if c.Roster.Markers.ValidityEnd == "" {
		c.Roster.Markers.ValidityEnd = def.ValidityEnd
	}
	if c.Roster.Markers.Footer == nil {
		c.Roster.Markers.Footer = def.Footer
	}
	if c.Expiry.Grace <= 0 {
		c.Expiry.Grace = expiry.GraceWindow
	}
	if c.Expiry.Timezone == "" {
		c.Expiry.Timezone = "America/Argentina/Buenos_Aires"
	}
	if c.Expiry.SweepConcurrency <= 0 {
		c.Expiry.SweepConcurrency = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q check (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
		}
	}
	if _, err := roster.LookupEncoding(c.Roster.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("roster.encoding: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func structValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldPath turns "Config.roster.url" into "roster.url".
func fieldPath(fe validator.FieldError) string {
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	return path
}

// Location loads the expiry time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Expiry.Timezone)
	if err != nil {
		return nil, fmt.Errorf("expiry.timezone %q: %w", c.Expiry.Timezone, err)
	}
	return loc, nil
}

func (c *Config) FetchConfig() roster.FetchConfig {
	return roster.FetchConfig{
		TimeoutSeconds: c.Roster.TimeoutSeconds,
		MaxRetries:     c.Roster.MaxRetries,
		MaxBodyBytes:   c.Roster.MaxBodyBytes,
		AcceptLanguage: c.Roster.AcceptLanguage,
		UserAgent:      c.Roster.UserAgent,
	}
}

func (c *Config) RosterService() roster.ServiceConfig {
	return roster.ServiceConfig{
		URL:          c.Roster.URL,
		Encoding:     c.Roster.Encoding,
		CacheTTL:     c.Roster.CacheTTL,
		FailureTTL:   c.Roster.FailureTTL,
		MaxBodyBytes: c.Roster.MaxBodyBytes,
		Markers: roster.Markers{
			ValidityStart: c.Roster.Markers.ValidityStart,
			ValidityEnd:   c.Roster.Markers.ValidityEnd,
			Footer:        c.Roster.Markers.Footer,
		},
	}
}

func (c *Config) LoggerOptions(service string) logger.Options {
	return logger.Options{
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Service: service,
	}
}

// CORSOrigins returns the configured origins plus the local frontend.
func (c *Config) CORSOrigins() []string {
	origins := []string{"http://localhost:4200"}
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
