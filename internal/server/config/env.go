package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv overlays Config with environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it. Variables that are not set leave fields unchanged.
func parseEnv(config *Config) {
	// the .env file is optional
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
