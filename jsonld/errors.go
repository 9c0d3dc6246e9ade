package jsonld

import "errors"

// Common processor errors.
var (
	// ErrUnsupportedFormat is returned when a serialization format is not registered.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnsupportedEmbed is returned for an @embed flag the processor does not implement.
	ErrUnsupportedEmbed = errors.New("unsupported embed flag")

	// ErrUnknownCapability is returned when registering an unknown capability.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrInvalidCapability is returned when a capability implementation has the wrong type.
	ErrInvalidCapability = errors.New("invalid capability implementation")

	// ErrUnexpectedOutput is returned when a primitive yields an unexpected value type.
	ErrUnexpectedOutput = errors.New("unexpected processor output")

	// ErrPrimitivePanic is returned when the underlying library panics on malformed input.
	ErrPrimitivePanic = errors.New("processor panic")
)
