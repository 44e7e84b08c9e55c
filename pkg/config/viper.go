// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                // Current working directory
	viper.AddConfigPath("/etc/sitewatch/")  // System-wide configuration
	viper.AddConfigPath("$HOME/.sitewatch") // User-specific configuration

	// watch.target_url has no default on purpose: a run without a
	// configured target must fail validation before any fetch.
	viper.SetDefault("watch.user_agent", "SiteWatch/1.0 (+https://github.com/sitewatch/sitewatch)")
	viper.SetDefault("watch.timeout_seconds", 30)
	viper.SetDefault("watch.strip_patterns", []string{})
	viper.SetDefault("watch.whitespace_collapse", true)
	viper.SetDefault("watch.exclude_selectors", []string{"script", "style", "noscript"})
	viper.SetDefault("watch.max_text_chars", 20000)
	viper.SetDefault("watch.excerpt_chars", 500)
	viper.SetDefault("watch.max_excerpt_store_chars", 5000)
	viper.SetDefault("watch.max_page_bytes", 5*1024*1024)
	viper.SetDefault("watch.retry_attempts", 3)
	viper.SetDefault("watch.render_js", false)
	viper.SetDefault("watch.js_render_timeout", "15s")

	viper.SetDefault("report.site_title", "Site Change Monitor")
	viper.SetDefault("report.base_url", "")
	viper.SetDefault("report.diff_context_lines", 3)
	viper.SetDefault("report.max_diff_lines", 220)
	viper.SetDefault("report.output_dir", "public")

	viper.SetDefault("state.path", "data/state.json")

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("logging.development", false)

	// e.g. SITEWATCH_WATCH_TARGET_URL=https://example.test/page
	viper.SetEnvPrefix("SITEWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Not fatal: defaults plus env vars may be a complete config.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
