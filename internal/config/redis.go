package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

// RedisConfig addresses the Redis server used for rate limiting, the
// response cache and OTP codes.  REDIS_HOST with REDIS_PORT takes
// precedence over REDIS_ADDR.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"  envDefault:"0"`
	TLS      bool   `env:"REDIS_TLS" envDefault:"false"`
}

func LoadRedisConfig() (RedisConfig, error) {
	var rc RedisConfig
	if err := env.Parse(&rc); err != nil {
		return RedisConfig{}, err
	}
	if rc.Host != "" && rc.Port != "" {
		rc.Addr = rc.Host + ":" + rc.Port
	}
	return rc, nil
}

// NewRedisClient connects and pings Redis.  It returns nil when the
// server is unreachable so that callers can fall back to in-process
// behaviour.
func NewRedisClient(rc RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
