package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	Server struct {
		Addr           string
		AllowedOrigins string `mapstructure:"allowed_origins"`
	} `mapstructure:"server"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

// Load reads configuration from the optional yaml file at path and from
// APP_* environment variables (env wins). An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("app.env", "prod")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("metrics.enabled", true)

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	_ = v.BindEnv("postgres.dsn", "DATABASE_URL")
	_ = v.BindEnv("server.addr", "APP_SERVER_ADDR")
	_ = v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
