package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/david/kapt-crawler/internal/crawl"
	"gopkg.in/yaml.v3"
)

//go:embed settings.yaml
var defaultSettingsYAML []byte

// SettingsEnv names a settings file to load when no path is given.
const SettingsEnv = "KAPT_SETTINGS"

const (
	EngineHTTP  = "http"
	EngineColly = "colly"
)

// Settings is the application configuration.
type Settings struct {
	BaseURL  string           `yaml:"base_url"`
	Fetch    FetchSettings    `yaml:"fetch"`
	Output   OutputSettings   `yaml:"output"`
	Console  ConsoleSettings  `yaml:"console"`
	Database DatabaseSettings `yaml:"database"`
}

type FetchSettings struct {
	Engine         string `yaml:"engine"`                    // "http" or "colly"
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 10
	DetailAttempts int    `yaml:"detail_attempts,omitempty"` // Default: 3
	DelayMS        int    `yaml:"delay_ms,omitempty"`        // Minimum gap between requests
	UserAgent      string `yaml:"user_agent,omitempty"`
}

type OutputSettings struct {
	SummaryDir    string `yaml:"summary_dir"`
	SummaryPrefix string `yaml:"summary_prefix"`
	DetailDir     string `yaml:"detail_dir"`
	DetailPrefix  string `yaml:"detail_prefix"`
}

type ConsoleSettings struct {
	Listen       string `yaml:"listen"`
	FavoritesDir string `yaml:"favorites_dir"`
}

type DatabaseSettings struct {
	URL string `yaml:"url,omitempty"`
}

// LoadSettings returns the embedded defaults, overlaid with the file at path.
// An empty path falls back to $KAPT_SETTINGS; if that is empty too the
// defaults are returned as is.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if err := decodeSettings(defaultSettingsYAML, &s); err != nil {
		return nil, fmt.Errorf("embedded settings: %w", err)
	}

	if path == "" {
		path = os.Getenv(SettingsEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if err := decodeSettings(data, &s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	s.applyDefaults()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeSettings expands ${VAR} references and unmarshals over s, so keys
// absent from data keep their current values.
func decodeSettings(data []byte, s *Settings) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), s)
}

func (s *Settings) applyDefaults() {
	if s.BaseURL == "" {
		s.BaseURL = crawl.DefaultBaseURL
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.Fetch.Engine == "" {
		s.Fetch.Engine = EngineHTTP
	}
	if s.Fetch.TimeoutSeconds <= 0 {
		s.Fetch.TimeoutSeconds = int(crawl.DefaultTimeout / time.Second)
	}
	if s.Fetch.DetailAttempts <= 0 {
		s.Fetch.DetailAttempts = crawl.DefaultAttempts
	}
	if s.Fetch.UserAgent == "" {
		s.Fetch.UserAgent = crawl.DefaultUserAgent
	}
	if s.Database.URL == "" {
		s.Database.URL = os.Getenv("DATABASE_URL")
	}
}

func (s *Settings) validate() error {
	switch s.Fetch.Engine {
	case EngineHTTP, EngineColly:
	default:
		return fmt.Errorf("unknown fetch engine %q (want %s or %s)", s.Fetch.Engine, EngineHTTP, EngineColly)
	}
	if s.Output.SummaryDir == "" || s.Output.DetailDir == "" {
		return fmt.Errorf("output directories must not be empty")
	}
	return nil
}

func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.Fetch.TimeoutSeconds) * time.Second
}

func (s *Settings) Delay() time.Duration {
	return time.Duration(s.Fetch.DelayMS) * time.Millisecond
}

// NewFetcher builds the configured fetch engine.
func (s *Settings) NewFetcher() crawl.Fetcher {
	if s.Fetch.Engine == EngineColly {
		f := crawl.NewCollyFetcher(s.Timeout(), s.Delay())
		f.UserAgent = s.Fetch.UserAgent
		return f
	}
	f := crawl.NewHTTPFetcher(s.Timeout()).WithDelay(s.Delay())
	f.UserAgent = s.Fetch.UserAgent
	return f
}
