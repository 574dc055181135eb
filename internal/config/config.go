package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Game   GameConfig   `mapstructure:"game"`
	Agent  AgentConfig  `mapstructure:"agent"`
	Server ServerConfig `mapstructure:"server"`
}

// GameConfig holds game mechanics configuration
type GameConfig struct {
	Map        MapConfig        `mapstructure:"map"`
	Turns      TurnsConfig      `mapstructure:"turns"`
	Economy    EconomyConfig    `mapstructure:"economy"`
	Production ProductionConfig `mapstructure:"production"`
}

// MapConfig holds map generation settings
type MapConfig struct {
	Width             int     `mapstructure:"width"`
	Height            int     `mapstructure:"height"`
	MinCapitalSpacing int     `mapstructure:"min_capital_spacing"`
	WaterLevel        float64 `mapstructure:"water_level"`
	MountainLevel     float64 `mapstructure:"mountain_level"`
}

// TurnsConfig holds turn pipeline settings
type TurnsConfig struct {
	MaxTurns          int    `mapstructure:"max_turns"`
	SummarizeInterval int    `mapstructure:"summarize_interval"`
	DefaultBuildUnit  string `mapstructure:"default_build_unit"`
}

// EconomyConfig holds per-turn accrual settings
type EconomyConfig struct {
	GoldPerCity       int `mapstructure:"gold_per_city"`
	SciencePerCity    int `mapstructure:"science_per_city"`
	BaseScience       int `mapstructure:"base_science"`
	FoodPerTurn       int `mapstructure:"food_per_turn"`
	GrowthFoodPerPop  int `mapstructure:"growth_food_per_pop"`
	UnhappinessPerPop int `mapstructure:"unhappiness_per_pop"`
}

// ProductionConfig holds city production settings
type ProductionConfig struct {
	BaseRate   int `mapstructure:"base_rate"`
	PerPopRate int `mapstructure:"per_pop_rate"`
}

// AgentConfig holds agent backend settings
type AgentConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ProbePath      string `mapstructure:"probe_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	DBPath    string `mapstructure:"db_path"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var (
	// Global config instance
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// Map defaults
	v.SetDefault("game.map.width", 24)
	v.SetDefault("game.map.height", 18)
	v.SetDefault("game.map.min_capital_spacing", 6)
	v.SetDefault("game.map.water_level", -0.25)
	v.SetDefault("game.map.mountain_level", 0.55)

	// Turn defaults
	v.SetDefault("game.turns.max_turns", 50)
	v.SetDefault("game.turns.summarize_interval", 5)
	v.SetDefault("game.turns.default_build_unit", "warrior")

	// Economy defaults
	v.SetDefault("game.economy.gold_per_city", 2)
	v.SetDefault("game.economy.science_per_city", 1)
	v.SetDefault("game.economy.base_science", 1)
	v.SetDefault("game.economy.food_per_turn", 2)
	v.SetDefault("game.economy.growth_food_per_pop", 10)
	v.SetDefault("game.economy.unhappiness_per_pop", 1)

	// Production defaults
	v.SetDefault("game.production.base_rate", 3)
	v.SetDefault("game.production.per_pop_rate", 1)

	// Agent backend defaults
	v.SetDefault("agent.base_url", "http://localhost:8090")
	v.SetDefault("agent.timeout_seconds", 60)
	v.SetDefault("agent.probe_path", "/healthz")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.db_path", "civ.db")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")
}

// Init initializes the configuration
func Init(configPath string) error {
	v = viper.New()

	// Set defaults before loading any config
	setViperDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/civ-server")
	}

	// Set environment variable prefix
	v.SetEnvPrefix("CIV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if configPath != "" {
			// Specific file requested but not found - that's ok, use defaults
		} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// For default locations, only ignore ConfigFileNotFoundError
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults
	}

	// Unmarshal into config struct
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		// Initialize with defaults if not already initialized
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
	}
	return cfg
}

// Set allows runtime config updates
func Set(key string, value interface{}) {
	v.Set(key, value)
	// Re-unmarshal to update struct
	v.Unmarshal(cfg)
}

// WatchConfig enables hot-reloading of config file
func WatchConfig(onChange func()) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		// Re-unmarshal on change
		v.Unmarshal(cfg)
		if onChange != nil {
			onChange()
		}
	})
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if c.Game.Map.Width < 4 || c.Game.Map.Height < 4 {
		return fmt.Errorf("game.map dimensions must be at least 4x4")
	}
	if c.Game.Map.MinCapitalSpacing < 1 {
		return fmt.Errorf("game.map.min_capital_spacing must be at least 1")
	}
	if c.Game.Map.WaterLevel >= c.Game.Map.MountainLevel {
		return fmt.Errorf("game.map.water_level must be below mountain_level")
	}
	if c.Game.Turns.MaxTurns <= 0 {
		return fmt.Errorf("game.turns.max_turns must be positive")
	}
	if c.Game.Turns.SummarizeInterval <= 0 {
		return fmt.Errorf("game.turns.summarize_interval must be positive")
	}
	if c.Game.Turns.DefaultBuildUnit == "" {
		return fmt.Errorf("game.turns.default_build_unit must be set")
	}
	if c.Game.Economy.GrowthFoodPerPop <= 0 {
		return fmt.Errorf("game.economy.growth_food_per_pop must be positive")
	}
	if c.Game.Production.BaseRate <= 0 {
		return fmt.Errorf("game.production.base_rate must be positive")
	}
	if c.Agent.TimeoutSeconds < 0 {
		return fmt.Errorf("agent.timeout_seconds must be non-negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}
