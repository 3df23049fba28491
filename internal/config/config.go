package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr        string
		AllowOrigin string
	}
	Database struct {
		Path string
	}
	Auth struct {
		Secret          string
		Algorithm       string
		TokenTTLMinutes int
	}
}

// Load reads configuration from environment variables and optional config files.
// The signing secret and algorithm have no defaults; a missing value is a
// startup error rather than a server that silently mints unverifiable tokens.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("WORKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.alloworigin", "http://localhost:3000")
	v.SetDefault("database.path", "data/workout.db")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.algorithm", "")
	v.SetDefault("auth.tokenttlminutes", 20)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return Config{}, fmt.Errorf("auth secret is required (WORKOUT_AUTH_SECRET)")
	}
	if strings.TrimSpace(cfg.Auth.Algorithm) == "" {
		return Config{}, fmt.Errorf("auth algorithm is required (WORKOUT_AUTH_ALGORITHM)")
	}
	if cfg.Auth.TokenTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("auth token ttl must be positive")
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
