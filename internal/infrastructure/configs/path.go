package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/lounge/internal/infrastructure/env"
)

var configFlag = flag.String("config", "", "path to config file")

// DetermineConfigPath resolves the config file from the -config flag, the
// LOUNGE_CONFIG env var, then a list of well known locations. An empty result
// means no file was found and Load falls back to defaults.
func DetermineConfigPath() string {
	if !flag.Parsed() {
		flag.Parse()
	}

	configPath := *configFlag

	if configPath == "" {
		configPath = env.GetString("LOUNGE_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			os.ExpandEnv("$HOME/.config/lounge/config.yaml"),
			"/etc/lounge/config.yaml",
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
