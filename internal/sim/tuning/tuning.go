package tuning

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "POMMER_"

type Tuning struct {
	Seed     int64  `yaml:"seed" env:"SEED"`
	GameMode string `yaml:"game_mode" env:"GAME_MODE"`
	MaxTicks int    `yaml:"max_ticks" env:"MAX_TICKS"`

	VisionRange          int `yaml:"vision_range" env:"VISION_RANGE"`
	BombLife             int `yaml:"bomb_life" env:"BOMB_LIFE"`
	FlameLife            int `yaml:"flame_life" env:"FLAME_LIFE"`
	DefaultAmmo          int `yaml:"default_ammo" env:"DEFAULT_AMMO"`
	DefaultBlastStrength int `yaml:"default_blast_strength" env:"DEFAULT_BLAST_STRENGTH"`
	WoodPowerUpPermille  int `yaml:"wood_powerup_permille" env:"WOOD_POWERUP_PERMILLE"`

	ActionTimeoutMs int `yaml:"action_timeout_ms" env:"ACTION_TIMEOUT_MS"`

	Negotiation Negotiation `yaml:"negotiation" envPrefix:"NEGOTIATION_"`
}

type Negotiation struct {
	EveryTicks        int     `yaml:"every_ticks" env:"EVERY_TICKS"`
	ProposalLimit     int     `yaml:"proposal_limit" env:"PROPOSAL_LIMIT"`
	StayApartDistance int     `yaml:"stay_apart_distance" env:"STAY_APART_DISTANCE"`
	NoBombDistance    int     `yaml:"no_bomb_distance" env:"NO_BOMB_DISTANCE"`
	KickDotThreshold  float64 `yaml:"kick_dot_threshold" env:"KICK_DOT_THRESHOLD"`
	RecordMessages    *bool   `yaml:"record_messages" env:"RECORD_MESSAGES"`
}

func Defaults() Tuning {
	record := true
	return Tuning{
		Seed:                 1,
		GameMode:             "ffa",
		MaxTicks:             800,
		VisionRange:          3,
		BombLife:             10,
		FlameLife:            3,
		DefaultAmmo:          1,
		DefaultBlastStrength: 2,
		WoodPowerUpPermille:  500,
		ActionTimeoutMs:      100,
		Negotiation: Negotiation{
			EveryTicks:        100,
			ProposalLimit:     3,
			StayApartDistance: 3,
			NoBombDistance:    3,
			KickDotThreshold:  0.9,
			RecordMessages:    &record,
		},
	}
}

// Load reads a yaml tuning file. Keys missing from the file keep their Defaults value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// ApplyEnv overrides fields from environment variables named prefix+KEY.
func ApplyEnv(t *Tuning, prefix string) error {
	if err := env.ParseWithOptions(t, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return t.Validate()
}

func (t Tuning) Validate() error {
	switch t.GameMode {
	case "", "ffa", "team":
	default:
		return fmt.Errorf("game_mode %q: want ffa or team", t.GameMode)
	}
	if t.WoodPowerUpPermille < 0 || t.WoodPowerUpPermille > 1000 {
		return fmt.Errorf("wood_powerup_permille %d out of range", t.WoodPowerUpPermille)
	}
	if t.MaxTicks < 0 || t.BombLife < 0 || t.FlameLife < 0 || t.VisionRange < 0 {
		return fmt.Errorf("negative tick or range value")
	}
	if t.Negotiation.ProposalLimit < 0 || t.Negotiation.EveryTicks < 0 {
		return fmt.Errorf("negotiation: negative value")
	}
	return nil
}

func (n Negotiation) Record() bool {
	return n.RecordMessages == nil || *n.RecordMessages
}
