package config

import "os"

func IsDebug() bool {
	return os.Getenv("ALFRED_DEBUG") == "1"
}

// GetRuntimePath is read before config parsing so the .env file in the
// runtime directory can feed the rest of the configuration.
func GetRuntimePath() string {
	if path := os.Getenv("ALFRED_RUNTIME_PATH"); path != "" {
		return path
	}
	return ".alfred"
}
