package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig drives the Redis token-bucket limiter.  The OTP fields
// configure a stricter bucket for one-time code requests.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED"         envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY"        envDefault:"60"`
	Burst          int           `env:"RATE_LIMIT_BURST"           envDefault:"-1"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS"   envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
	RefillEvery    time.Duration `env:"RATE_LIMIT_REFILL_EVERY"    envDefault:"0s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL"             envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY"    envDefault:"ip_user_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX"          envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG"           envDefault:"false"`

	OTPCapacity    int           `env:"RATE_LIMIT_OTP_CAPACITY"     envDefault:"3"`
	OTPRefillEvery time.Duration `env:"RATE_LIMIT_OTP_REFILL_EVERY" envDefault:"1m"`
}

func LoadRateLimitConfig() (RateLimitConfig, error) {
	var rl RateLimitConfig
	if err := env.Parse(&rl); err != nil {
		return RateLimitConfig{}, err
	}
	return rl.normalize(), nil
}

// normalize applies the burst and refill-every shorthands and clamps
// values to a usable bucket.
func (rl RateLimitConfig) normalize() RateLimitConfig {
	if rl.Burst > 0 {
		rl.Capacity = rl.Burst
	}
	if rl.RefillEvery > 0 {
		rl.RefillTokens = 1
		rl.RefillInterval = rl.RefillEvery
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	if rl.OTPCapacity < 1 {
		rl.OTPCapacity = 1
	}
	if rl.OTPRefillEvery <= 0 {
		rl.OTPRefillEvery = time.Minute
	}
	return rl
}

// ForOTP derives the bucket used on OTP request routes.  The general
// burst and refill-every shorthands do not carry over.
func (rl RateLimitConfig) ForOTP() RateLimitConfig {
	otp := rl
	otp.Burst = 0
	otp.RefillEvery = 0
	otp.Capacity = rl.OTPCapacity
	otp.RefillTokens = 1
	otp.RefillInterval = rl.OTPRefillEvery
	otp.KeyStrategy = "ip_route"
	otp.Prefix = rl.Prefix + ":otp"
	otp.TTL = 0
	return otp.normalize()
}
