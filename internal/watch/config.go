package watch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob that influences a monitoring
// run. All values originate from Viper so the monitor can be configured
// via files, env vars, or CLI flags.
type Config struct {
	TargetURL            string
	UserAgent            string
	Timeout              time.Duration
	StripPatterns        []string
	WhitespaceCollapse   bool
	ExcludeSelectors     []string
	MaxTextChars         int
	ExcerptChars         int
	MaxExcerptStoreChars int
	MaxPageBytes         int64
	RetryAttempts        int
	RenderJS             bool
	JSRenderTimeout      time.Duration

	SiteTitle        string
	BaseURL          string
	DiffContextLines int
	MaxDiffLines     int
	OutputDir        string
	StatePath        string
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		TargetURL:            v.GetString("watch.target_url"),
		UserAgent:            v.GetString("watch.user_agent"),
		Timeout:              time.Duration(v.GetInt("watch.timeout_seconds")) * time.Second,
		StripPatterns:        v.GetStringSlice("watch.strip_patterns"),
		WhitespaceCollapse:   v.GetBool("watch.whitespace_collapse"),
		ExcludeSelectors:     v.GetStringSlice("watch.exclude_selectors"),
		MaxTextChars:         v.GetInt("watch.max_text_chars"),
		ExcerptChars:         v.GetInt("watch.excerpt_chars"),
		MaxExcerptStoreChars: v.GetInt("watch.max_excerpt_store_chars"),
		MaxPageBytes:         v.GetInt64("watch.max_page_bytes"),
		RetryAttempts:        v.GetInt("watch.retry_attempts"),
		RenderJS:             v.GetBool("watch.render_js"),
		JSRenderTimeout:      v.GetDuration("watch.js_render_timeout"),
		SiteTitle:            v.GetString("report.site_title"),
		BaseURL:              v.GetString("report.base_url"),
		DiffContextLines:     v.GetInt("report.diff_context_lines"),
		MaxDiffLines:         v.GetInt("report.max_diff_lines"),
		OutputDir:            v.GetString("report.output_dir"),
		StatePath:            v.GetString("state.path"),
	}
	return cfg, cfg.Validate()
}

// Validate checks required settings and obviously bad combinations.
// A failure here is a ConfigError: the run aborts before any fetch.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TargetURL) == "" {
		return fmt.Errorf("watch.target_url is required")
	}
	parsed, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("watch.target_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("watch.target_url must use http or https, got %q", parsed.Scheme)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("watch.user_agent must be set")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("watch.timeout_seconds must be > 0")
	}
	for _, p := range c.StripPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("watch.strip_patterns entry %q: %w", p, err)
		}
	}
	if c.MaxTextChars <= 0 {
		return fmt.Errorf("watch.max_text_chars must be > 0")
	}
	if c.ExcerptChars <= 0 {
		return fmt.Errorf("watch.excerpt_chars must be > 0")
	}
	if c.MaxExcerptStoreChars < c.ExcerptChars {
		return fmt.Errorf("watch.max_excerpt_store_chars must be >= watch.excerpt_chars")
	}
	if c.MaxPageBytes <= 0 {
		return fmt.Errorf("watch.max_page_bytes must be > 0")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("watch.retry_attempts must be >= 1")
	}
	if c.RenderJS && c.JSRenderTimeout <= 0 {
		return fmt.Errorf("watch.js_render_timeout must be > 0 when watch.render_js is enabled")
	}
	if c.DiffContextLines < 0 {
		return fmt.Errorf("report.diff_context_lines must be >= 0")
	}
	if c.MaxDiffLines <= 0 {
		return fmt.Errorf("report.max_diff_lines must be > 0")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("report.output_dir must be set")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state.path must be set")
	}
	return nil
}
