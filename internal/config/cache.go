package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// CacheConfig drives the response cache middleware.  Only public catalogue
// routes are cached; availability is never cached because it changes with
// every booking.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED"        envDefault:"true"`
	MethodList   []string      `env:"CACHE_METHODS"        envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"CACHE_TTL"            envDefault:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY"   envDefault:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX"         envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`

	Methods map[string]bool
}

func LoadCacheConfig() (CacheConfig, error) {
	var cc CacheConfig
	if err := env.Parse(&cc); err != nil {
		return CacheConfig{}, err
	}
	cc.Methods = parseMethods(cc.MethodList)
	if cc.TTL <= 0 {
		cc.TTL = time.Second
	}
	return cc, nil
}

func parseMethods(list []string) map[string]bool {
	m := map[string]bool{}
	for _, p := range list {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
