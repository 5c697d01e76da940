package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// renderConfig supplies defaults for the render command. Flags given on
// the command line win over the file.
type renderConfig struct {
	World        string `yaml:"world"`
	Out          string `yaml:"out"`
	Format       string `yaml:"format"`
	Mode         string `yaml:"mode"`
	Colors       string `yaml:"colors"`
	TileSize     int    `yaml:"tile_size"`
	ZoomLevels   int    `yaml:"zoom_levels"`
	Workers      int    `yaml:"workers"`
	Cache        string `yaml:"cache"`
	CacheMode    string `yaml:"cache_mode"`
	Bounds       string `yaml:"bounds"`
	TerrainShade bool   `yaml:"terrain_shade"`
	Night        bool   `yaml:"night"`
}

func loadRenderConfig(path string) (renderConfig, error) {
	var cfg renderConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
