package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/factgate/errors"
)

// ProjectFile is the per-project config file searched for upward from the
// working directory.
const ProjectFile = "factgate.toml"

// EnvPrefix prefixes every environment override, e.g. FACTGATE_REGISTRY_PATH.
const EnvPrefix = "FACTGATE"

// Load builds the effective configuration. explicitFile, when set, is
// merged last among files and must exist.
func Load(explicitFile string) (*Config, error) {
	v, err := NewViper(explicitFile)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapInvalidRequest(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewViper returns a viper instance with defaults, config files from
// SearchPaths and environment binding applied.
func NewViper(explicitFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	paths := SearchPaths(home, cwd)
	if explicitFile != "" {
		if _, err := os.Stat(explicitFile); err != nil {
			return nil, errors.WithHint(
				errors.NewInvalidRequestError("config file %s does not exist", explicitFile),
				"create one with: factgate config init")
		}
		paths = append(paths, explicitFile)
	}
	if err := mergeConfigFiles(v, paths); err != nil {
		return nil, err
	}
	return v, nil
}

// SearchPaths lists candidate config files from lowest to highest
// precedence: system, user, then the nearest project file.
func SearchPaths(home, cwd string) []string {
	paths := []string{"/etc/factgate/config.toml"}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".factgate", "config.toml"))
	}
	if p := findProjectConfig(cwd); p != "" {
		paths = append(paths, p)
	}
	return paths
}

// findProjectConfig walks up from dir looking for ProjectFile.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		p := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges each existing file into v in order. Merged values
// sit below environment variables.
func mergeConfigFiles(v *viper.Viper, paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		tmp := viper.New()
		tmp.SetConfigFile(p)
		tmp.SetConfigType("toml")
		if err := tmp.ReadInConfig(); err != nil {
			return errors.WrapInvalidRequest(err, "failed to read config file "+p)
		}
		if err := v.MergeConfigMap(tmp.AllSettings()); err != nil {
			return errors.Wrapf(err, "merge config file %s", p)
		}
	}
	return nil
}
