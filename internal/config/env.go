package config

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/vango-dev/reactive/internal/errors"
)

// EnvPrefix prefixes environment overrides. The key server.port is read
// from REACTIVE_SERVER_PORT.
const EnvPrefix = "REACTIVE"

// envBinding copies one environment key into the config.
type envBinding struct {
	key   string
	apply func(c *Config, v *viper.Viper, key string)
}

var envBindings = []envBinding{
	{"server.host", func(c *Config, v *viper.Viper, k string) { c.Server.Host = v.GetString(k) }},
	{"server.port", func(c *Config, v *viper.Viper, k string) { c.Server.Port = v.GetInt(k) }},
	{"server.shutdown_timeout", func(c *Config, v *viper.Viper, k string) { c.Server.ShutdownTimeout = v.GetString(k) }},
	{"server.call_timeout", func(c *Config, v *viper.Viper, k string) { c.Server.CallTimeout = v.GetString(k) }},
	{"server.allowed_origins", func(c *Config, v *viper.Viper, k string) { c.Server.AllowedOrigins = splitList(v.GetString(k)) }},
	{"engine.max_flush_rounds", func(c *Config, v *viper.Viper, k string) { c.Engine.MaxFlushRounds = v.GetInt(k) }},
	{"engine.log_level", func(c *Config, v *viper.Viper, k string) { c.Engine.LogLevel = v.GetString(k) }},
	{"engine.log_format", func(c *Config, v *viper.Viper, k string) { c.Engine.LogFormat = v.GetString(k) }},
	{"store.backend", func(c *Config, v *viper.Viper, k string) { c.Store.Backend = v.GetString(k) }},
	{"store.key", func(c *Config, v *viper.Viper, k string) { c.Store.Key = v.GetString(k) }},
	{"store.bucket", func(c *Config, v *viper.Viper, k string) { c.Store.Bucket = v.GetString(k) }},
	{"store.prefix", func(c *Config, v *viper.Viper, k string) { c.Store.Prefix = v.GetString(k) }},
	{"store.region", func(c *Config, v *viper.Viper, k string) { c.Store.Region = v.GetString(k) }},
	{"store.endpoint", func(c *Config, v *viper.Viper, k string) { c.Store.Endpoint = v.GetString(k) }},
	{"store.path_style", func(c *Config, v *viper.Viper, k string) { c.Store.PathStyle = v.GetBool(k) }},
	{"store.path", func(c *Config, v *viper.Viper, k string) { c.Store.Path = v.GetString(k) }},
	{"metrics.enabled", func(c *Config, v *viper.Viper, k string) { c.Metrics.Enabled = v.GetBool(k) }},
	{"metrics.namespace", func(c *Config, v *viper.Viper, k string) { c.Metrics.Namespace = v.GetString(k) }},
	{"tracing.enabled", func(c *Config, v *viper.Viper, k string) { c.Tracing.Enabled = v.GetBool(k) }},
	{"tracing.tracer_name", func(c *Config, v *viper.Viper, k string) { c.Tracing.TracerName = v.GetString(k) }},
	{"tracing.min_duration", func(c *Config, v *viper.Viper, k string) { c.Tracing.MinDuration = v.GetString(k) }},
}

// ApplyEnv overrides fields from REACTIVE_* environment variables and
// returns the keys it applied. It does not validate.
func (c *Config) ApplyEnv() ([]string, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var applied []string
	for _, b := range envBindings {
		if err := v.BindEnv(b.key); err != nil {
			return applied, errors.New("E141").WithDetail("Cannot bind " + b.key).Wrap(err)
		}
		if !v.IsSet(b.key) {
			continue
		}
		b.apply(c, v, b.key)
		applied = append(applied, b.key)
	}
	return applied, nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
