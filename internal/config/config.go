// Package config loads and validates the application configuration file.
package config

import (
	"fmt"

	"github.com/evermore-parks/parknav/internal/geoloc"
	"github.com/evermore-parks/parknav/internal/navigation"
	"github.com/evermore-parks/parknav/internal/routing"
	"github.com/evermore-parks/parknav/pkg/util"
)

type ServerConfig struct {
	Port int `yaml:"port" validate:"required,gt=0,lte=65535"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server" validate:"required"`
	Routing     routing.Config    `yaml:"routing" validate:"required"`
	Geolocation geoloc.Config     `yaml:"geolocation" validate:"required"`
	Navigation  navigation.Config `yaml:"navigation" validate:"required"`
}

func Load(filepath string) (*AppConfig, error) {
	cfg, err := util.LoadConfig[AppConfig](filepath)
	if err != nil {
		return nil, fmt.Errorf("error loading app config: %w", err)
	}
	return cfg, nil
}
