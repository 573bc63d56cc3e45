package playback

import (
	"context"
	"time"
)

// WidgetState is the playback state reported by a widget.
// Values follow the YouTube IFrame player states.
type WidgetState int

const (
	WidgetUnstarted WidgetState = -1
	WidgetEnded     WidgetState = 0
	WidgetPlaying   WidgetState = 1
	WidgetPaused    WidgetState = 2
	WidgetBuffering WidgetState = 3
	WidgetCued      WidgetState = 5
)

// String returns the string representation of the widget state.
func (s WidgetState) String() string {
	switch s {
	case WidgetUnstarted:
		return "unstarted"
	case WidgetEnded:
		return "ended"
	case WidgetPlaying:
		return "playing"
	case WidgetPaused:
		return "paused"
	case WidgetBuffering:
		return "buffering"
	case WidgetCued:
		return "cued"
	default:
		return "unknown"
	}
}

// Widget is a handle to a bound media player.
// Methods are called by the Adapter and must not invoke WidgetEvents
// callbacks synchronously.
type Widget interface {
	PlayVideo() error
	PauseVideo() error
	SeekTo(seconds float64) error
	SetVolume(percent int) error // 0..100
	CurrentTime() (float64, error)
	Duration() (float64, error)
	Close() error
}

// WidgetOptions configures how the widget presents the media.
type WidgetOptions struct {
	Autoplay         bool
	Controls         bool
	KeyboardDisabled bool
	Fullscreen       bool
	RelatedContent   bool
}

// DefaultWidgetOptions returns a chromeless autoplaying widget configuration.
func DefaultWidgetOptions() WidgetOptions {
	return WidgetOptions{
		Autoplay:         true,
		KeyboardDisabled: true,
	}
}

// PlayerVars returns the options as YouTube embed player parameters.
func (o WidgetOptions) PlayerVars() map[string]int {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return map[string]int{
		"autoplay":  b(o.Autoplay),
		"controls":  b(o.Controls),
		"disablekb": b(o.KeyboardDisabled),
		"fs":        b(o.Fullscreen),
		"rel":       b(o.RelatedContent),
	}
}

// BindRequest describes the media a widget should load.
type BindRequest struct {
	MediaID      string
	Title        string
	DurationHint time.Duration
	Options      WidgetOptions
}

// WidgetEvents are the callbacks a widget raises. Both are delivered
// asynchronously, never from inside Bind or a Widget method.
type WidgetEvents struct {
	Ready        func(w Widget)
	StateChanged func(state WidgetState)
}

// Binder creates widgets. ctx is cancelled when the binding is abandoned,
// after which no further events may be delivered.
type Binder interface {
	Bind(ctx context.Context, req BindRequest, events WidgetEvents) error
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(ctx context.Context, req BindRequest, events WidgetEvents) error

// Bind calls f.
func (f BinderFunc) Bind(ctx context.Context, req BindRequest, events WidgetEvents) error {
	return f(ctx, req, events)
}
