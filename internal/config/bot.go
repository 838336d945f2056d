package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL       string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	SessionCode string `env:"SESSION_CODE" envDefault:"DEMO"`
	StudentID   string `env:"STUDENT_ID" envDefault:"bot"`
	Nickname    string `env:"NICKNAME" envDefault:"Bot"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
