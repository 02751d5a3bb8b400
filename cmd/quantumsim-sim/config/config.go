// Package config loads the YAML configuration for a quantumsim-sim run.
// Layout mirrors the teacher's cmd/session-service/config.Config: one
// struct per concern, yaml tags matching the field names, a DefaultConfig
// the binary falls back to when no file is given.
package config

// Config is a complete simulation run: protocol, channel, traffic, and the
// ambient logging/tracing concerns.
type Config struct {
	Protocol string `yaml:"Protocol"` // "abp" or "gbn"
	Window   int    `yaml:"Window"`   // ignored for abp
	BufSize  int    `yaml:"BufSize"`
	Horizon  float64 `yaml:"Horizon"`
	RNGSeed  int64   `yaml:"RNGSeed"`

	RTO     RTOConfig     `yaml:"RTO"`
	Channel ChannelConfig `yaml:"Channel"`
	Traffic TrafficConfig `yaml:"Traffic"`
	FEC     FECConfig     `yaml:"FEC"`
	Log     LogConfig     `yaml:"Log"`
	Tracing TracingConfig `yaml:"Tracing"`
}

// RTOConfig configures the sender's adaptive retransmission timeout.
type RTOConfig struct {
	Initial    float64 `yaml:"Initial"`
	Min        float64 `yaml:"Min"`
	Max        float64 `yaml:"Max"`
	BackoffCap float64 `yaml:"BackoffCap"`
}

// ChannelConfig configures the lossy link between A and B.
type ChannelConfig struct {
	LossProb    float64 `yaml:"LossProb"`
	CorruptProb float64 `yaml:"CorruptProb"`
	LatencyMin  float64 `yaml:"LatencyMin"`
	LatencyMax  float64 `yaml:"LatencyMax"`
}

// TrafficConfig selects and parameterizes the application traffic source.
type TrafficConfig struct {
	Mode     string          `yaml:"Mode"` // "scripted" or "poisson"
	Scripted []ScriptedEntry `yaml:"Scripted"`
	Poisson  PoissonConfig   `yaml:"Poisson"`
}

// ScriptedEntry is one scripted send: a simulated time and a message.
type ScriptedEntry struct {
	At      float64 `yaml:"At"`
	Message string  `yaml:"Message"`
}

// PoissonConfig parameterizes a Poisson arrival process.
type PoissonConfig struct {
	Lambda  float64 `yaml:"Lambda"`
	MinSize int     `yaml:"MinSize"`
	MaxSize int     `yaml:"MaxSize"`
}

// FECConfig enables and sizes the optional Reed-Solomon forward error
// correction layer.
type FECConfig struct {
	Enable       bool `yaml:"Enable"`
	DataShards   int  `yaml:"DataShards"`
	ParityShards int  `yaml:"ParityShards"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"Level"`  // debug, info, warn, error
	Format string `yaml:"Format"` // json, console
}

// TracingConfig configures the optional OpenTelemetry export, identical in
// shape to the teacher's gateway tracing config.
type TracingConfig struct {
	Enable       bool    `yaml:"Enable"`
	ServiceName  string  `yaml:"ServiceName"`
	Endpoint     string  `yaml:"Endpoint"`
	Exporter     string  `yaml:"Exporter"`
	SampleRate   float64 `yaml:"SampleRate"`
	Environment  string  `yaml:"Environment"`
	BatchTimeout int     `yaml:"BatchTimeout"`
	MaxQueueSize int     `yaml:"MaxQueueSize"`
}

// DefaultConfig returns the spec's default GBN run: window 8, a lossy but
// usable channel, a short scripted message, tracing and FEC both off.
func DefaultConfig() *Config {
	return &Config{
		Protocol: "gbn",
		Window:   8,
		BufSize:  64,
		Horizon:  10000,
		RNGSeed:  1,
		RTO: RTOConfig{
			Initial:    15,
			Min:        1,
			Max:        120,
			BackoffCap: 64,
		},
		Channel: ChannelConfig{
			LossProb:    0.2,
			CorruptProb: 0.01,
			LatencyMin:  5,
			LatencyMax:  15,
		},
		Traffic: TrafficConfig{
			Mode: "scripted",
			Scripted: []ScriptedEntry{
				{At: 0, Message: "hello, unreliable world"},
			},
		},
		FEC: FECConfig{
			Enable:       false,
			DataShards:   4,
			ParityShards: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Enable:       false,
			ServiceName:  "quantumsim",
			Endpoint:     "http://localhost:14268/api/traces",
			Exporter:     "jaeger",
			SampleRate:   1.0,
			Environment:  "development",
			BatchTimeout: 5,
			MaxQueueSize: 2048,
		},
	}
}
