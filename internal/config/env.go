package config

import "os"

// EnvOverrides holds configuration values read from the environment.
// Environment variables rank below CLI flags and above the config file.
type EnvOverrides struct {
	ConfigPath string
	BackendURL string
	AnonKey    string
	StateDir   string
}

// ReadEnvOverrides reads the MONETO_* environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv("MONETO_CONFIG"),
		BackendURL: os.Getenv("MONETO_BACKEND_URL"),
		AnonKey:    os.Getenv("MONETO_ANON_KEY"),
		StateDir:   os.Getenv("MONETO_STATE_DIR"),
	}
}
