package config

import (
	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultRegistryPath      = "factgate.db"
	DefaultMaxSentBack       = 3
	DefaultMaxMentionsBack   = 30
	DefaultMaxMentionSamples = 20
	DefaultMaxExamples       = 3
)

// SetDefaults registers a default for every key. Keys without a default are
// invisible to Unmarshal when they only come from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", DefaultRegistryPath)

	v.SetDefault("coref.max_sent_back", DefaultMaxSentBack)
	v.SetDefault("coref.max_mentions_back", DefaultMaxMentionsBack)

	v.SetDefault("link.adapters", []string{})
	v.SetDefault("link.wikidata_cache", "")
	v.SetDefault("link.uei_cache", "")

	v.SetDefault("promote.schema", "")
	v.SetDefault("promote.conf_thr", 0.0) // take the schema's value
	v.SetDefault("promote.min_evidence", 0)
	v.SetDefault("promote.max_mention_samples", DefaultMaxMentionSamples)
	v.SetDefault("promote.max_examples", DefaultMaxExamples)
	v.SetDefault("promote.metrics_file", "")

	v.SetDefault("log.json", false)
}

// Defaults returns the configuration SetDefaults describes.
func Defaults() *Config {
	return &Config{
		Registry: RegistryConfig{Path: DefaultRegistryPath},
		Coref:    CorefConfig{MaxSentBack: DefaultMaxSentBack, MaxMentionsBack: DefaultMaxMentionsBack},
		Link:     LinkConfig{Adapters: []string{}},
		Promote: PromoteConfig{
			MaxMentionSamples: DefaultMaxMentionSamples,
			MaxExamples:       DefaultMaxExamples,
		},
	}
}
