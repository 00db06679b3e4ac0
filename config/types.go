package config

// Pool holds the terms applied to newly configured lending pools.
type Pool struct {
	LoanAmount uint64 `toml:"LoanAmount" yaml:"loanAmount"`
	FeeBps     uint64 `toml:"FeeBps" yaml:"feeBps"`
}

// Pauses toggles module-level circuit breakers.
type Pauses struct {
	Pawn bool `toml:"Pawn" yaml:"pawn"`
}

// Modules returns the names of the paused modules.
func (p Pauses) Modules() []string {
	var out []string
	if p.Pawn {
		out = append(out, "pawn")
	}
	return out
}

// RateLimit bounds API requests per client address.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int `toml:"Burst" yaml:"burst"`
}

// Auth bounds the signed request tokens the API accepts.
type Auth struct {
	ClockSkewSeconds   int `toml:"ClockSkewSeconds" yaml:"clockSkewSeconds"`
	MaxTokenAgeSeconds int `toml:"MaxTokenAgeSeconds" yaml:"maxTokenAgeSeconds"`
}

// Log configures structured logging.
type Log struct {
	Env        string `toml:"Env" yaml:"env"`
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}

// Faucet exposes development endpoints that create assets and issue units.
// It must stay disabled outside local networks.
type Faucet struct {
	Enabled bool   `toml:"Enabled" yaml:"enabled"`
	Token   string `toml:"Token" yaml:"token"`
}
