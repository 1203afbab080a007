package engine

import "fmt"

type GameMode string

const (
	FFA  GameMode = "ffa"
	Team GameMode = "team"
)

type Config struct {
	Seed int64
	Mode GameMode
	// MaxTicks zero uses the default; negative disables the limit.
	MaxTicks int

	VisionRange          int
	BombLife             int
	FlameLife            int
	DefaultAmmo          int
	DefaultBlastStrength int
	// WoodPowerUpPermille is the chance a burnt wood wall hides a power-up.
	// Zero uses the default; negative disables hidden power-ups.
	WoodPowerUpPermille int
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = FFA
	}
	if c.MaxTicks == 0 {
		c.MaxTicks = 800
	}
	if c.VisionRange <= 0 {
		c.VisionRange = 3
	}
	if c.BombLife <= 0 {
		c.BombLife = 10
	}
	if c.FlameLife <= 0 {
		c.FlameLife = 3
	}
	if c.DefaultAmmo <= 0 {
		c.DefaultAmmo = 1
	}
	if c.DefaultBlastStrength <= 0 {
		c.DefaultBlastStrength = 2
	}
	if c.WoodPowerUpPermille == 0 {
		c.WoodPowerUpPermille = 500
	}
}

func (c Config) validate() error {
	switch c.Mode {
	case FFA, Team:
	default:
		return fmt.Errorf("unknown game mode %q", c.Mode)
	}
	if c.WoodPowerUpPermille > 1000 {
		return fmt.Errorf("wood power-up permille %d > 1000", c.WoodPowerUpPermille)
	}
	return nil
}
