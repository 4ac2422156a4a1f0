package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iTrooz/dealership-client/internal/config"
	"github.com/iTrooz/dealership-client/internal/proxy"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	server, err := setup(os.Args[1:])
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	if err := server.Start(); err != nil {
		logrus.Fatalf("Server failed: %v", err)
	}
}

func setup(args []string) (*proxy.Server, error) {
	configPath := defaultConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.SetupLogging()

	server, err := proxy.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy server: %w", err)
	}
	return server, nil
}
