// Package llm provides options pattern for LLM generation parameters.
//
// Defaults are applied once when a ModelSelection is resolved into
// request parameters; they can be overridden from config.yaml or from code.
package llm

// Default sampling parameters used when nothing else is configured.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1200
)

// GenerateOptions holds sampling parameters for a model.
type GenerateOptions struct {
	// Temperature controls randomness in responses (0.0 = deterministic, 1.0 = random)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the temperature for generation.
// Runtime override: takes precedence over the built-in default.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
// Non-positive values keep the default.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		if tokens > 0 {
			o.MaxTokens = tokens
		}
	}
}

// DefaultGenerateOptions returns the defaults with opts applied.
func DefaultGenerateOptions(opts ...GenerateOption) GenerateOptions {
	o := GenerateOptions{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
