package contracts

// DefaultClientName is used when a caller constructs an endpoint with an empty client name.
const DefaultClientName = "Go MIDI Bridge"

// DefaultQueueSizeLimit is the receive queue depth used when a caller passes zero.
const DefaultQueueSizeLimit = 100

// Options defines the configuration of a bridge.
type Options struct {
	Logger         Logger   // Logger for lifecycle events and errors.
	LogLevel       LogLevel // Level of logging to use.
	LogFilePath    string   // File path for logging; empty means console.
	ClientName     string   // Client name used when a constructor receives an empty one.
	QueueSizeLimit uint     // Input queue depth used when a constructor receives zero.
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithLogger sets the logger for the bridge.
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the bridge.
func WithLogLevel(level LogLevel) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithLogFile sends log output to the file at path.
func WithLogFile(path string) Option {
	return func(opts *Options) {
		opts.LogFilePath = path
	}
}

// WithClientName sets the fallback client name.
func WithClientName(name string) Option {
	return func(opts *Options) {
		opts.ClientName = name
	}
}

// WithQueueSizeLimit sets the fallback input queue depth.
func WithQueueSizeLimit(limit uint) Option {
	return func(opts *Options) {
		opts.QueueSizeLimit = limit
	}
}
