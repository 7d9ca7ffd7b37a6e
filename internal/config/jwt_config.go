package config

import "os"

type JwtConfig struct {
	Secret string
	Method string
}

func NewJwtConfig() *JwtConfig {
	return &JwtConfig{
		Secret: os.Getenv("JWT_SECRET"),
		Method: getEnv("JWT_METHOD", "HS256"),
	}
}
