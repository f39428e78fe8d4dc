package utils

import (
	"os"
	"strings"
)

const (
	ENV string = "ENV"
)

const (
	CONFIG_TYPE string = "CONFIG_TYPE"
	CONFIG_FILE string = "FILE"
	CONFIG_MSE  string = "MSE"

	CONFIG_FILE_PATH string = "CONFIG_FILE_PATH"
)

const envPrefix = "WHALE_"

// GetEnv deployment environment from WHALE_ENV, e.g. DEV or PROD
func GetEnv() string {
	return os.Getenv(envPrefix + ENV)
}

func GetConfigType() string {
	configType := os.Getenv(envPrefix + CONFIG_TYPE)
	if configType == "" {
		return CONFIG_FILE
	}
	return configType
}

func IsFileConfig() bool {
	configType := GetConfigType()
	return configType == "" || strings.ToUpper(configType) == CONFIG_FILE
}

func GetConfigFilePath() string {
	return os.Getenv(envPrefix + CONFIG_FILE_PATH)
}
