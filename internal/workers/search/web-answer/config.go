package webanswer

import "time"

type Config struct {
	Timeout     time.Duration
	PageTimeout time.Duration
	Temperature float32
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     120 * time.Second,
		PageTimeout: 20 * time.Second,
		Temperature: 0.3,
	}
}
