// Package config loads server configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/reversus-game/reversus-server-go/internal/game"
)

// EnvPrefix prefixes every environment override, e.g. REVERSUS_SERVER_GRPC_ADDRESS.
const EnvPrefix = "REVERSUS"

// Config is the full server configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	History HistoryConfig `mapstructure:"history"`
	Rules   RulesConfig   `mapstructure:"rules"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds listener and match hosting settings.
type ServerConfig struct {
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	GRPC            GRPCConfig      `mapstructure:"grpc"`
	TurnTimeout     time.Duration   `mapstructure:"turn_timeout"`
	MaxMatches      int             `mapstructure:"max_matches"`
	MaxMessageBytes int64           `mapstructure:"max_message_bytes"`
	ReplayDir       string          `mapstructure:"replay_dir"`
}

// WebSocketConfig configures the websocket listener.
type WebSocketConfig struct {
	Address string `mapstructure:"address"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// HistoryConfig selects where finished matches are stored.
type HistoryConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RulesConfig overrides the default game tuning.
type RulesConfig struct {
	ValueHandSize          int    `mapstructure:"value_hand_size"`
	EffectHandSize         int    `mapstructure:"effect_hand_size"`
	WinningPosition        int    `mapstructure:"winning_position"`
	PathCount              int    `mapstructure:"path_count"`
	StartingHearts         int    `mapstructure:"starting_hearts"`
	BossHearts             int    `mapstructure:"boss_hearts"`
	TournamentWinsRequired int    `mapstructure:"tournament_wins_required"`
	SurvivalRounds         int    `mapstructure:"survival_rounds"`
	NarrativeCooldown      int    `mapstructure:"narrative_cooldown"`
	Seed                   uint64 `mapstructure:"seed"`
}

// GameRules converts the configured tuning into game.Rules.
func (r RulesConfig) GameRules() game.Rules {
	return game.Rules{
		ValueHandSize:     r.ValueHandSize,
		EffectHandSize:    r.EffectHandSize,
		WinningPosition:   r.WinningPosition,
		PathCount:         r.PathCount,
		StartingHearts:    r.StartingHearts,
		BossHearts:        r.BossHearts,
		WinsRequired:      r.TournamentWinsRequired,
		SurvivalRounds:    r.SurvivalRounds,
		NarrativeCooldown: r.NarrativeCooldown,
		Seed:              r.Seed,
	}
}

func setDefaults(v *viper.Viper) {
	d := game.DefaultRules()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.turn_timeout", 60*time.Second)
	v.SetDefault("server.max_matches", 1000)
	v.SetDefault("server.max_message_bytes", 64*1024)
	v.SetDefault("server.replay_dir", "")

	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "reversus.db")
	v.SetDefault("history.max_conns", 10)

	v.SetDefault("rules.value_hand_size", d.ValueHandSize)
	v.SetDefault("rules.effect_hand_size", d.EffectHandSize)
	v.SetDefault("rules.winning_position", d.WinningPosition)
	v.SetDefault("rules.path_count", d.PathCount)
	v.SetDefault("rules.starting_hearts", d.StartingHearts)
	v.SetDefault("rules.boss_hearts", d.BossHearts)
	v.SetDefault("rules.tournament_wins_required", d.WinsRequired)
	v.SetDefault("rules.survival_rounds", d.SurvivalRounds)
	v.SetDefault("rules.narrative_cooldown", d.NarrativeCooldown)
	v.SetDefault("rules.seed", 0)
}

// Load reads the YAML file at path, applies defaults and environment
// overrides. A missing file is not an error; defaults and env still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.History.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("unknown history driver %q", c.History.Driver)
	}
	if c.History.Driver != "none" && c.History.DSN == "" {
		return fmt.Errorf("history driver %s needs a dsn", c.History.Driver)
	}
	if c.Server.TurnTimeout < 0 {
		return fmt.Errorf("turn_timeout must not be negative")
	}
	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive")
	}
	r := c.Rules
	if r.ValueHandSize < 1 || r.EffectHandSize < 0 {
		return fmt.Errorf("hand sizes must allow at least one value card")
	}
	if r.WinningPosition < 2 {
		return fmt.Errorf("winning_position must be at least 2")
	}
	return nil
}
