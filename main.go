package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ninja0404/whale-signal/internal/app"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	defaultPath := "./config/config.yaml"
	if path := utils.GetConfigFilePath(); path != "" {
		defaultPath = path
	}
	var configPath string
	flag.StringVar(&configPath, "config", defaultPath, "config file path")
	flag.Parse()

	application := app.New()
	if err := application.Start(configPath, !utils.IsFileConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "whale signal failed: %v\n", err)
		os.Exit(1)
	}
}
