package config

// SetDefaults fills zero-valued fields.
func SetDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TickRate == 0 {
		cfg.Server.TickRate = 20
	}

	if cfg.Simulation.WorldFile == "" {
		cfg.Simulation.WorldFile = "./configs/world.yaml"
	}
	if cfg.Simulation.MaxStorage == 0 {
		cfg.Simulation.MaxStorage = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Client.RateLimit == 0 {
		cfg.Client.RateLimit = 120
	}
	if cfg.Client.MaxMessageSize == 0 {
		cfg.Client.MaxMessageSize = 8192
	}

	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}

	if cfg.Redis.BlacklistPrefix == "" {
		cfg.Redis.BlacklistPrefix = "blacklist:"
	}
	if cfg.Redis.EventChannel == "" {
		cfg.Redis.EventChannel = "foundry:events"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}
