package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Card phase
	CardCount        int `env:"CARD_COUNT" envDefault:"3"`
	BaseDamage       int `env:"BASE_DAMAGE" envDefault:"5"`
	DamagePerCorrect int `env:"DAMAGE_PER_CORRECT" envDefault:"5"`

	// Match rules
	StartingHP        int `env:"STARTING_HP" envDefault:"200"`
	MaxRounds         int `env:"MAX_ROUNDS" envDefault:"3"`
	RoundDurationSec  int `env:"ROUND_DURATION_SECONDS" envDefault:"60"`
	ReconnectGraceSec int `env:"RECONNECT_GRACE_SECONDS" envDefault:"30"`

	// Spell physics used by authoritative hit validation
	SpellCooldownMS int     `env:"SPELL_COOLDOWN_MS" envDefault:"500"`
	SpellTTLSec     int     `env:"SPELL_TTL_SECONDS" envDefault:"5"`
	SpellSpeed      float64 `env:"SPELL_SPEED" envDefault:"300"`
	HitTolerance    float64 `env:"HIT_TOLERANCE" envDefault:"48"`
	ArenaWidth      float64 `env:"ARENA_WIDTH" envDefault:"800"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c ServerConfig) RoundDuration() time.Duration {
	return time.Duration(c.RoundDurationSec) * time.Second
}

func (c ServerConfig) ReconnectGrace() time.Duration {
	return time.Duration(c.ReconnectGraceSec) * time.Second
}

func (c ServerConfig) SpellCooldown() time.Duration {
	return time.Duration(c.SpellCooldownMS) * time.Millisecond
}

func (c ServerConfig) SpellTTL() time.Duration {
	return time.Duration(c.SpellTTLSec) * time.Second
}
