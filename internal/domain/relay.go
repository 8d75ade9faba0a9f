package domain

import "context"

// CommandSink accepts commands on behalf of the radio link.
type CommandSink interface {
	Send(ctx context.Context, cmd Command) error
}

// TelemetryPublisher fans a sample out to every live viewer.
type TelemetryPublisher interface {
	Publish(sample Telemetry) int
}
