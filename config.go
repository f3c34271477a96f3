package signalflow

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance
var validate = validator.New()

// SignalConfig holds the timing constants of the signal machine
type SignalConfig struct {
	DefaultGreen time.Duration `yaml:"default_green_time" validate:"gt=0"`
	MinGreen     time.Duration `yaml:"min_green_time" validate:"gt=0"`
	MaxGreen     time.Duration `yaml:"max_green_time" validate:"gt=0"`
	Yellow       time.Duration `yaml:"yellow_time" validate:"gt=0"`

	// TickInterval is the polling granularity of the autonomous cycle
	TickInterval time.Duration `yaml:"tick_interval" validate:"gt=0"`

	// InitialApproach holds green at startup; empty means the first approach
	InitialApproach Approach `yaml:"initial_approach"`
}

// ClampGreen bounds a green duration to [MinGreen, MaxGreen]
func (c SignalConfig) ClampGreen(d time.Duration) time.Duration {
	if d < c.MinGreen {
		return c.MinGreen
	}
	if d > c.MaxGreen {
		return c.MaxGreen
	}
	return d
}

// AnalyzerConfig holds the congestion analysis constants
type AnalyzerConfig struct {
	// CongestionThreshold is the vehicle count considered saturated
	CongestionThreshold float64 `yaml:"congestion_threshold" validate:"gt=0"`
	WindowSize          int     `yaml:"window_size" validate:"min=1"`
}

// LoopConfig holds the orchestrator period
type LoopConfig struct {
	Period time.Duration `yaml:"period" validate:"gt=0"`
}

// DetectorConfig selects the vehicle count source used by the control loop
type DetectorConfig struct {
	Mode       string `yaml:"mode" validate:"oneof=random replay subscribe"`
	ReplayFile string `yaml:"replay_file" validate:"required_if=Mode replay"`
	Address    string `yaml:"address" validate:"required_if=Mode subscribe"`
	MaxCount   int    `yaml:"max_count" validate:"min=0"`
	Seed       int64  `yaml:"seed"`
}

// ActuatorConfig configures forwarding of phase changes to the hardware collaborator
type ActuatorConfig struct {
	// Address is a mangos listen URL such as tcp://127.0.0.1:40899; empty disables publishing
	Address string `yaml:"address"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Address is the HTTP listen address; empty disables the endpoint
	Address string `yaml:"address"`
}

// Config is the complete deployment configuration. It is immutable after construction.
type Config struct {
	Approaches []Approach     `yaml:"approaches" validate:"required,min=1,unique,dive,required"`
	Signal     SignalConfig   `yaml:"signal"`
	Analyzer   AnalyzerConfig `yaml:"analyzer"`
	Loop       LoopConfig     `yaml:"loop"`
	Detector   DetectorConfig `yaml:"detector"`
	Actuator   ActuatorConfig `yaml:"actuator"`
	Metrics    MetricsConfig  `yaml:"metrics"`
}

// DefaultConfig returns the stock four-way intersection configuration
func DefaultConfig() Config {
	approaches := make([]Approach, len(DefaultApproaches))
	copy(approaches, DefaultApproaches)

	return Config{
		Approaches: approaches,
		Signal: SignalConfig{
			DefaultGreen: 30 * time.Second,
			MinGreen:     10 * time.Second,
			MaxGreen:     90 * time.Second,
			Yellow:       3 * time.Second,
			TickInterval: 100 * time.Millisecond,
		},
		Analyzer: AnalyzerConfig{
			CongestionThreshold: 10,
			WindowSize:          10,
		},
		Loop: LoopConfig{
			Period: time.Second,
		},
		Detector: DetectorConfig{
			Mode:     "random",
			MaxCount: 20,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig and validates it
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks struct constraints and the timing ordering invariant
func (c Config) Validate() error {
	collector := NewErrorCollector()

	collectStructErrors(collector, c)
	collector.Add(c.Signal.validateOrdering())

	if c.Signal.InitialApproach != "" && len(c.Approaches) > 0 {
		found := false
		for _, a := range c.Approaches {
			if a == c.Signal.InitialApproach {
				found = true
				break
			}
		}
		if !found {
			collector.Addf("Config.Signal.InitialApproach: '%s' is not a configured approach", c.Signal.InitialApproach)
		}
	}

	return collector.AsConfigurationError("Config")
}

// ApproachSet builds the ordered approach set from the configuration
func (c Config) ApproachSet() (*Approaches, error) {
	return NewApproaches(c.Approaches...)
}

func (c SignalConfig) validateOrdering() error {
	if c.MinGreen > c.DefaultGreen || c.DefaultGreen > c.MaxGreen {
		return fmt.Errorf("Config.Signal: require min_green_time <= default_green_time <= max_green_time, got %s <= %s <= %s",
			c.MinGreen, c.DefaultGreen, c.MaxGreen)
	}
	return nil
}

// validateSignal checks the signal timing alone, used by constructors
func validateSignal(c SignalConfig) error {
	collector := NewErrorCollector()
	collectStructErrors(collector, c)
	collector.Add(c.validateOrdering())
	return collector.AsConfigurationError("SignalConfig")
}

func collectStructErrors(collector *ErrorCollector, v any) {
	err := validate.Struct(v)
	if err == nil {
		return
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		collector.Add(err)
		return
	}
	for _, fe := range validationErrors {
		collector.Addf("%s: failed '%s' validation", fe.Namespace(), fe.Tag())
	}
}
