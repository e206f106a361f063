package directanswer

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float32
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		Temperature: 0.3,
	}
}
