// Package config loads factgate settings from TOML files, FACTGATE_*
// environment variables and defaults, in that order of precedence.
package config

import "fmt"

// Config is the full factgate configuration.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry" toml:"registry" json:"registry"`
	Coref    CorefConfig    `mapstructure:"coref" toml:"coref" json:"coref"`
	Link     LinkConfig     `mapstructure:"link" toml:"link" json:"link"`
	Promote  PromoteConfig  `mapstructure:"promote" toml:"promote" json:"promote"`
	Log      LogConfig      `mapstructure:"log" toml:"log" json:"log"`
}

// RegistryConfig locates the canonical identity store.
type RegistryConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path"`
}

// CorefConfig bounds the pronoun antecedent search.
type CorefConfig struct {
	MaxSentBack     int `mapstructure:"max_sent_back" toml:"max_sent_back" json:"max_sent_back"`             // sentence distance (default: 3)
	MaxMentionsBack int `mapstructure:"max_mentions_back" toml:"max_mentions_back" json:"max_mentions_back"` // candidates collected (default: 30)
}

// LinkConfig selects external id adapters and their offline caches.
type LinkConfig struct {
	Adapters      []string `mapstructure:"adapters" toml:"adapters" json:"adapters"` // e.g. ["wikidata", "uei"]
	WikidataCache string   `mapstructure:"wikidata_cache" toml:"wikidata_cache" json:"wikidata_cache"`
	UEICache      string   `mapstructure:"uei_cache" toml:"uei_cache" json:"uei_cache"`
}

// CachePaths maps adapter names to their cache files.
func (l LinkConfig) CachePaths() map[string]string {
	return map[string]string{
		"wikidata": l.WikidataCache,
		"uei":      l.UEICache,
	}
}

// PromoteConfig drives promote and doctor.
type PromoteConfig struct {
	Schema            string  `mapstructure:"schema" toml:"schema" json:"schema"`
	ConfThr           float64 `mapstructure:"conf_thr" toml:"conf_thr" json:"conf_thr"`             // 0 = schema default
	MinEvidence       int     `mapstructure:"min_evidence" toml:"min_evidence" json:"min_evidence"` // 0 = schema default
	MaxMentionSamples int     `mapstructure:"max_mention_samples" toml:"max_mention_samples" json:"max_mention_samples"`
	MaxExamples       int     `mapstructure:"max_examples" toml:"max_examples" json:"max_examples"`
	MetricsFile       string  `mapstructure:"metrics_file" toml:"metrics_file" json:"metrics_file"`
}

// LogConfig selects the log encoder.
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0o755
	DefaultFilePermissions = 0o644
)

// String returns a one-line summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Registry: %s, Promote: {Schema: %s, ConfThr: %v, MinEvidence: %d}, Adapters: %v}",
		c.Registry.Path, c.Promote.Schema, c.Promote.ConfThr, c.Promote.MinEvidence, c.Link.Adapters)
}
