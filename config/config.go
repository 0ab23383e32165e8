package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBType           string        `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN              string        `mapstructure:"DSN"`
	SkipAutoMigrate  bool          `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	Port             int           `mapstructure:"PORT"`
	MaxAncestryDepth int           `mapstructure:"MAX_ANCESTRY_DEPTH"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"` // empty disables the resolution cache
	CacheTTL         time.Duration `mapstructure:"CACHE_TTL"`

	// PermissionCatalog declares the grantable codes per resource type,
	// formatted as "type=code,code;type=code".
	PermissionCatalog string `mapstructure:"PERMISSION_CATALOG"`
}

// Catalog parses PermissionCatalog into per-type code lists. Malformed
// segments are skipped.
func (c *Config) Catalog() map[string][]string {
	out := make(map[string][]string)
	for _, entry := range strings.Split(c.PermissionCatalog, ";") {
		typ, codes, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || typ == "" {
			continue
		}
		for _, code := range strings.Split(codes, ",") {
			if code = strings.TrimSpace(code); code != "" {
				out[typ] = append(out[typ], code)
			}
		}
	}
	return out
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "teamwork.db") // Default to sqlite if not provided
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("MAX_ANCESTRY_DEPTH", 25)
	viper.SetDefault("CACHE_TTL", time.Minute)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
