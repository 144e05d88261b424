package main

import (
	"github.com/dukex/canvasblocks/pkg/config"
	cli "github.com/urfave/cli/v3"
)

// settingsFlags maps command line flags onto the settings fields they override.
var settingsFlags = map[string]func(*config.Settings, string){
	"vault":         func(s *config.Settings, v string) { s.VaultPath = v },
	"python":        func(s *config.Settings, v string) { s.PythonPath = v },
	"ordering":      func(s *config.Settings, v string) { s.Ordering = v },
	"database-url":  func(s *config.Settings, v string) { s.DatabaseURL = v },
	"event-bus":     func(s *config.Settings, v string) { s.EventBus = v },
	"kafka-brokers": func(s *config.Settings, v string) { s.KafkaBrokers = v },
}

// loadSettings reads the settings file, when one is given, and applies flags on top.
func loadSettings(command *cli.Command) (config.Settings, error) {
	settings := config.Default()

	if path := command.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return settings, err
		}

		settings = loaded
	}

	for name, apply := range settingsFlags {
		if command.IsSet(name) {
			apply(&settings, command.String(name))
		}
	}

	return settings, settings.Validate()
}
