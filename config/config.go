package config

import "time"

// Validation tags described here: https://pkg.go.dev/github.com/go-playground/validator/v10
type Config struct {
	Backend struct {
		Address        string        `env:"BACKEND_ADDRESS" flag:"backend-address" desc:"wallet daemon event socket host:port" validate:"required,hostname_port"`
		CallTimeout    time.Duration `env:"BACKEND_CALL_TIMEOUT" flag:"backend-call-timeout"`
		ReconnectDelay time.Duration `env:"BACKEND_RECONNECT_DELAY" flag:"backend-reconnect-delay"`
	}
	Contracts struct {
		ConfirmationInterval time.Duration `env:"CONTRACTS_CONFIRMATION_INTERVAL" flag:"contracts-confirmation-interval" desc:"period of the pending contract confirmation sweep"`
	}
	Environment string `env:"ENVIRONMENT" flag:"environment"`
	Log         struct {
		LogToFile   bool   `env:"LOG_TO_FILE" flag:"log-to-file"`
		Color       bool   `env:"LOG_COLOR" flag:"log-color"`
		LevelApp    string `env:"LOG_LEVEL_APP" flag:"log-level-app" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelEngine string `env:"LOG_LEVEL_ENGINE" flag:"log-level-engine" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelRelay  string `env:"LOG_LEVEL_RELAY" flag:"log-level-relay" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	}
	Settings struct {
		Path string `env:"SETTINGS_PATH" flag:"settings-path" desc:"filepath of the contract marks database"`
	}
	Web struct {
		Address string `env:"WEB_ADDRESS" flag:"web-address" desc:"http server address host:port" validate:"required,hostname_port"`
	}
}

// SetDefaults fills the zero fields the validation tags allow to stay
// empty.
func (cfg *Config) SetDefaults() {
	if cfg.Backend.CallTimeout == 0 {
		cfg.Backend.CallTimeout = 30 * time.Second
	}
	if cfg.Backend.ReconnectDelay == 0 {
		cfg.Backend.ReconnectDelay = 5 * time.Second
	}
	if cfg.Contracts.ConfirmationInterval == 0 {
		cfg.Contracts.ConfirmationInterval = 30 * time.Second
	}
	if cfg.Log.LevelApp == "" {
		cfg.Log.LevelApp = "info"
	}
	if cfg.Log.LevelEngine == "" {
		cfg.Log.LevelEngine = "info"
	}
	if cfg.Log.LevelRelay == "" {
		cfg.Log.LevelRelay = "info"
	}
	if cfg.Settings.Path == "" {
		cfg.Settings.Path = "escrowd.db"
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
}

// GetSanitized returns a copy of the config safe to expose over the API.
// Each field is added explicitly to avoid accidentally leaking anything
// sensitive added later.
func (cfg *Config) GetSanitized() interface{} {
	publicCfg := Config{}

	publicCfg.Environment = cfg.Environment

	publicCfg.Backend.Address = cfg.Backend.Address
	publicCfg.Backend.CallTimeout = cfg.Backend.CallTimeout
	publicCfg.Backend.ReconnectDelay = cfg.Backend.ReconnectDelay

	publicCfg.Contracts.ConfirmationInterval = cfg.Contracts.ConfirmationInterval

	publicCfg.Log.LogToFile = cfg.Log.LogToFile
	publicCfg.Log.Color = cfg.Log.Color
	publicCfg.Log.LevelApp = cfg.Log.LevelApp
	publicCfg.Log.LevelEngine = cfg.Log.LevelEngine
	publicCfg.Log.LevelRelay = cfg.Log.LevelRelay

	publicCfg.Web.Address = cfg.Web.Address

	return publicCfg
}
