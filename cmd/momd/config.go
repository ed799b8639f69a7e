package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML configuration document. Flags override
// file values, file values override environment defaults.
type fileConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	StateFile  string `yaml:"state_file"`
	HealthAddr string `yaml:"health_addr"`
	Instance   string `yaml:"instance_name"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		path = os.Getenv("MOM_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveSettings merges flags, config file, environment, and defaults.
func resolveSettings(cmd *cobra.Command) (redisAddr, stateFile string, cfg *fileConfig, err error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err = loadFileConfig(configPath)
	if err != nil {
		return "", "", nil, err
	}

	redisAddr, _ = cmd.Flags().GetString("redis-addr")
	if redisAddr == "" {
		redisAddr = cfg.RedisAddr
	}
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	stateFile, _ = cmd.Flags().GetString("state-file")
	if stateFile == "" {
		stateFile = cfg.StateFile
	}
	if stateFile == "" {
		stateFile = os.Getenv("MOM_STATE_FILE")
	}
	if stateFile == "" {
		stateFile = "topics_state.json"
	}

	return redisAddr, stateFile, cfg, nil
}
