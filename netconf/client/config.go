package client

// Defines structs describing netconf configuration.

// Config defines properties that configure netconf session behaviour.
type Config struct {
	// Defines the time in seconds that the client will wait to receive a hello message from the server.
	SetupTimeoutSecs int
	// Prevents the client advertising :base:1.1, so the session stays on end-of-message framing.
	DisableChunkedCodec bool
}

// DefaultConfig is applied to any unspecified Config values.
var DefaultConfig = &Config{
	SetupTimeoutSecs: 5,
}
