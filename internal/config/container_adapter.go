package config

import (
	"github.com/helloviza/approvals/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// Call Validate first; an unparsable high value falls back to the default.
func (c *Config) ToContainerConfig() *container.Config {
	out := container.DefaultConfig()

	out.Database = container.DatabaseConfig{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		BusyTimeout:     c.Database.BusyTimeout,
		MigrationsDir:   c.Database.MigrationsDir,
	}
	out.Storage = container.StorageConfig{
		BaseDir:       c.Storage.BaseDir,
		MaxUploadSize: c.Storage.MaxUploadSize,
	}
	out.Auth = container.AuthConfig{
		JWTSecret: c.Auth.JWTSecret,
		TokenTTL:  c.Auth.TokenTTL,
	}
	out.Redis = container.RedisConfig{
		Addr:      c.Redis.Addr,
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		KeyPrefix: c.Redis.KeyPrefix,
		LockTTL:   c.Redis.LockTTL,
	}
	out.Server = container.ServerConfig{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		AllowedOrigins: c.Server.AllowedOrigins,
		RateLimitRPS:   c.RateLimit.RPS,
		RateLimitBurst: c.RateLimit.Burst,
	}
	if hv, err := c.HighValue(); err == nil {
		out.Signal.HighValue = hv
	}
	out.Worker = container.WorkerConfig{
		SweepInterval:  c.Worker.SweepInterval,
		SweepRetention: c.Worker.SweepRetention,
	}

	return out
}
