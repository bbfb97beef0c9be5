package health

import (
	"context"

	"comboboard/internal/audio"
)

// StoreCheck pings the history database.
func StoreCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: StatusUnhealthy, Message: "history store unreachable", Error: err.Error()}
		}
		return Result{Status: StatusHealthy, Message: "history store ok"}
	}
}

// TapCheck reports the key tap as unhealthy while probe returns an error,
// as it does when the tap failed to start or stopped delivering.
func TapCheck(name string, probe func() error) Check {
	return func(ctx context.Context) Result {
		details := map[string]any{"backend": name}
		if err := probe(); err != nil {
			return Result{Status: StatusUnhealthy, Message: "key tap down", Details: details, Error: err.Error()}
		}
		return Result{Status: StatusHealthy, Message: "key tap ok", Details: details}
	}
}

// AudioCheck reports the sink's state. A muted sink is degraded.
func AudioCheck(sink audio.Sink) Check {
	return func(ctx context.Context) Result {
		volume := sink.Volume()
		details := map[string]any{
			"volume": volume,
			"paused": sink.Paused(),
			"queued": !sink.Empty(),
		}
		if volume == 0 {
			return Result{Status: StatusDegraded, Message: "output muted", Details: details}
		}
		return Result{Status: StatusHealthy, Message: "audio ok", Details: details}
	}
}
