// Package clock provides a media widget that plays nothing and advances
// its position on the wall clock. It is used for headless sessions.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/playback"
)

// ErrClosed is returned by a closed widget.
var ErrClosed = errors.New("widget closed")

// Settings represents widget settings from player.widget.settings.
type Settings struct {
	TickMs             int `yaml:"tick_ms" mapstructure:"tick_ms" default:"100" validate:"gte=5,lte=1000"`
	DefaultDurationSec int `yaml:"default_duration_sec" mapstructure:"default_duration_sec" default:"180" validate:"gte=1"`
}

// ParseSettings decodes and validates raw settings.
func ParseSettings(raw map[string]any) (Settings, error) {
	var s Settings

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return s, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return s, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(s); err != nil {
		return s, errors.Wrap(err, "validation failed")
	}
	return s, nil
}

// Binder creates clock widgets.
type Binder struct {
	tick            time.Duration
	defaultDuration time.Duration
}

// NewBinder creates a new clock binder.
func NewBinder(s Settings) *Binder {
	return &Binder{
		tick:            time.Duration(s.TickMs) * time.Millisecond,
		defaultDuration: time.Duration(s.DefaultDurationSec) * time.Second,
	}
}

// Bind starts a widget for req. Ready is raised from the widget goroutine.
func (b *Binder) Bind(ctx context.Context, req playback.BindRequest, events playback.WidgetEvents) error {
	duration := req.DurationHint
	if duration <= 0 {
		duration = b.defaultDuration
	}

	w := &Widget{
		duration: duration.Seconds(),
		volume:   100,
		states:   make(chan playback.WidgetState, 8),
		done:     make(chan struct{}),
		now:      func() time.Time { return toWallTime(time.Now()) },
	}
	if req.Options.Autoplay {
		w.playing = true
		w.startedAt = w.now()
	}

	zlog.Debug().Msgf("clock: bound media=%s duration=%.1fs", req.MediaID, w.duration)
	go w.run(ctx, b.tick, events)
	return nil
}

// Widget is a simulated player.
type Widget struct {
	mu        sync.Mutex
	duration  float64
	base      float64   // position at startedAt
	startedAt time.Time // zero while paused
	playing   bool
	volume    int
	closed    bool

	states    chan playback.WidgetState
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func (w *Widget) run(ctx context.Context, tick time.Duration, events playback.WidgetEvents) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	if ctx.Err() != nil {
		return
	}
	if events.Ready != nil {
		events.Ready(w)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case st := <-w.states:
			if ctx.Err() == nil && events.StateChanged != nil {
				events.StateChanged(st)
			}
		case <-ticker.C:
			if w.checkEnded() && ctx.Err() == nil && events.StateChanged != nil {
				events.StateChanged(playback.WidgetEnded)
			}
		}
	}
}

// checkEnded stops the clock at the end of the media.
func (w *Widget) checkEnded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.playing || w.positionLocked() < w.duration {
		return false
	}
	w.playing = false
	w.base = w.duration
	w.startedAt = time.Time{}
	return true
}

func (w *Widget) positionLocked() float64 {
	pos := w.base
	if w.playing {
		pos += w.now().Sub(w.startedAt).Seconds()
	}
	if pos > w.duration {
		pos = w.duration
	}
	return pos
}

func (w *Widget) emit(st playback.WidgetState) {
	select {
	case w.states <- st:
	default:
	}
}

// PlayVideo starts the clock. Playing an ended widget restarts it.
func (w *Widget) PlayVideo() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.playing {
		return nil
	}
	if w.base >= w.duration {
		w.base = 0
	}
	w.playing = true
	w.startedAt = w.now()
	w.emit(playback.WidgetPlaying)
	return nil
}

// PauseVideo stops the clock.
func (w *Widget) PauseVideo() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if !w.playing {
		return nil
	}
	w.base = w.positionLocked()
	w.playing = false
	w.startedAt = time.Time{}
	w.emit(playback.WidgetPaused)
	return nil
}

// SeekTo moves the position, clamped to the media length.
func (w *Widget) SeekTo(seconds float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.base = min(max(seconds, 0), w.duration)
	if w.playing {
		w.startedAt = w.now()
	}
	return nil
}

// SetVolume records the volume.
func (w *Widget) SetVolume(percent int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.volume = min(max(percent, 0), 100)
	return nil
}

// Volume returns the last volume set.
func (w *Widget) Volume() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.volume
}

// Playing reports whether the clock is running.
func (w *Widget) Playing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.playing
}

// CurrentTime returns the position in seconds.
func (w *Widget) CurrentTime() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	return w.positionLocked(), nil
}

// Duration returns the media length in seconds.
func (w *Widget) Duration() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	return w.duration, nil
}

// Close stops the widget goroutine.
func (w *Widget) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.closeOnce.Do(func() { close(w.done) })
	return nil
}

// toWallTime strips the monotonic reading so elapsed time follows the wall clock.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
