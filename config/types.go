package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" validate:"gt=0"`
	Env  string `yaml:"env" validate:"omitempty,oneof=development production"`
}

// STMConfig contains transit authority API configuration. Client credentials
// are supplied through the environment only and are never logged.
type STMConfig struct {
	AuthURL           string `yaml:"authURL" validate:"required,url"`
	BaseURL           string `yaml:"baseURL" validate:"required,url"`
	VehicleFeedURL    string `yaml:"vehicleFeedURL" validate:"omitempty,url"`
	VehicleFeedFormat string `yaml:"vehicleFeedFormat" validate:"omitempty,oneof=json gtfsrt"`
	ClientID          string `yaml:"-"`
	ClientSecret      string `yaml:"-"`
}

// DirectionsConfig contains the directions provider configuration. The API
// key is supplied through the environment only.
type DirectionsConfig struct {
	BaseURL string `yaml:"baseURL" validate:"omitempty,url"`
	APIKey  string `yaml:"-"`
}

// PollConfig controls the live-arrival polling loop
type PollConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" validate:"gte=0"`
	TimeoutSeconds  int `yaml:"timeoutSeconds" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server" validate:"required"`
	STM        STMConfig        `yaml:"stm" validate:"required"`
	Directions DirectionsConfig `yaml:"directions"`
	Poll       PollConfig       `yaml:"poll"`
}
