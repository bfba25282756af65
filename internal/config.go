package internal

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tuannm99/novarow/internal/codec"
)

type Config struct {
	AppName  string `mapstructure:"app_name"`
	LogLevel string `mapstructure:"log_level"`
	Catalog  string `mapstructure:"catalog"`

	Codec struct {
		CompressedInts bool   `mapstructure:"compressed_ints"`
		SchemaHash     bool   `mapstructure:"schema_hash"`
		Opaque         string `mapstructure:"opaque"`
	} `mapstructure:"codec"`
}

// LoadConfig reads path when it is not empty. Environment variables
// prefixed NOVAROW_ override the file, e.g. NOVAROW_CODEC_SCHEMA_HASH.
// .env and .env.local in the working directory are loaded first.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetDefault("app_name", "novarow")
	v.SetDefault("log_level", "info")
	v.SetDefault("catalog", "catalog.yaml")
	v.SetDefault("codec.compressed_ints", false)
	v.SetDefault("codec.schema_hash", false)
	v.SetDefault("codec.opaque", "msgpack")

	v.SetEnvPrefix("novarow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// CodecOptions turns the codec section into registry options.
func (c *Config) CodecOptions() ([]codec.Option, error) {
	op, err := codec.OpaqueByName(c.Codec.Opaque)
	if err != nil {
		return nil, fmt.Errorf("codec.opaque: %w", err)
	}
	opts := []codec.Option{codec.WithOpaque(op)}
	if c.Codec.CompressedInts {
		opts = append(opts, codec.WithCompressedInts())
	}
	if c.Codec.SchemaHash {
		opts = append(opts, codec.WithSchemaHash())
	}
	return opts, nil
}
