// Config loading for the semid CLI.
// Implements: prd010-configuration-directories (R1.4, R1.5, R1.6, R8).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/semid/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyDataDir              = "data_dir"
	cfgKeyLanguage             = "language"
	cfgKeyIDCacheSize          = "id_cache_size"
	cfgKeySortCacheSize        = "sort_cache_size"
	cfgKeyLookupCacheSize      = "lookup_cache_size"
	cfgKeyTableHashCacheSize   = "table_hash_cache_size"
	cfgKeySequenceMapCacheSize = "sequence_map_cache_size"
	cfgKeySemanticCacheSize    = "semantic_data_cache_size"
	cfgKeyWarmUpThreshold      = "warm_up_threshold"
	cfgKeySemanticDataTTL      = "semantic_data_ttl"
	cfgKeyReverseLookupTTL     = "reverse_lookup_ttl"
	cfgKeyRedirectTTL          = "redirect_short_circuit_ttl"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Semid CLI configuration

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# BCP-47 language tag used for collation
language: en
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper. It creates the config directory and a default config.yaml on
// first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setConfigDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// setConfigDefaults seeds viper with the engine's tuning defaults so a
// sparse config.yaml yields a complete Config.
func setConfigDefaults(v *viper.Viper) {
	def := types.DefaultConfig()
	v.SetDefault(cfgKeyLanguage, def.Language)
	v.SetDefault(cfgKeyIDCacheSize, def.IDCacheSize)
	v.SetDefault(cfgKeySortCacheSize, def.SortCacheSize)
	v.SetDefault(cfgKeyLookupCacheSize, def.LookupCacheSize)
	v.SetDefault(cfgKeyTableHashCacheSize, def.TableHashCacheSize)
	v.SetDefault(cfgKeySequenceMapCacheSize, def.SequenceMapCacheSize)
	v.SetDefault(cfgKeySemanticCacheSize, def.SemanticDataCacheSize)
	v.SetDefault(cfgKeyWarmUpThreshold, def.WarmUpThreshold)
	v.SetDefault(cfgKeySemanticDataTTL, def.SemanticDataTTL)
	v.SetDefault(cfgKeyReverseLookupTTL, def.ReverseLookupTTL)
	v.SetDefault(cfgKeyRedirectTTL, def.RedirectShortCircuitTTL)
}

// engineConfig renders the loaded viper values into a types.Config for
// the given data directory.
func engineConfig(v *viper.Viper, dataDir string) types.Config {
	return types.Config{
		DataDir:                 dataDir,
		Language:                v.GetString(cfgKeyLanguage),
		IDCacheSize:             v.GetInt(cfgKeyIDCacheSize),
		SortCacheSize:           v.GetInt(cfgKeySortCacheSize),
		LookupCacheSize:         v.GetInt(cfgKeyLookupCacheSize),
		TableHashCacheSize:      v.GetInt(cfgKeyTableHashCacheSize),
		SequenceMapCacheSize:    v.GetInt(cfgKeySequenceMapCacheSize),
		SemanticDataCacheSize:   v.GetInt(cfgKeySemanticCacheSize),
		WarmUpThreshold:         v.GetInt(cfgKeyWarmUpThreshold),
		SemanticDataTTL:         v.GetDuration(cfgKeySemanticDataTTL),
		ReverseLookupTTL:        v.GetDuration(cfgKeyReverseLookupTTL),
		RedirectShortCircuitTTL: v.GetDuration(cfgKeyRedirectTTL),
	}
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does
// not exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
