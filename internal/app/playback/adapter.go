package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrAdapterClosed = errors.New("adapter closed")
	ErrNoWidget      = errors.New("no widget bound")
)

// DefaultPollInterval is how often progress is read from a playing widget.
const DefaultPollInterval = time.Second

// AdapterConfig holds adapter configuration.
type AdapterConfig struct {
	PollInterval time.Duration
	Options      WidgetOptions
}

// Adapter binds the Store to an embedded widget. It loads the media for the
// current track, forwards transport and volume, polls progress while
// playing and advances the Queue when playback ends.
type Adapter struct {
	store  *Store
	queue  *Queue
	binder Binder
	config AdapterConfig

	mu sync.Mutex

	// Binding
	generation   uint64 // bumped on every bind; stale callbacks are ignored
	boundTrackID string
	boundMediaID string
	renderable   bool
	widget       Widget // nil until the widget reports ready
	bindCancel   context.CancelFunc
	pollCancel   context.CancelFunc

	// Last applied store state
	lastVersion uint64
	isPlaying   bool
	volume      float64

	unsubscribe func()
	closed      bool
}

// NewAdapter creates an adapter and syncs it with the current store state.
func NewAdapter(store *Store, queue *Queue, binder Binder, config AdapterConfig) *Adapter {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	a := &Adapter{
		store:  store,
		queue:  queue,
		binder: binder,
		config: config,
	}
	a.unsubscribe = store.Subscribe(a.onChange)
	a.apply(store.Snapshot())
	return a
}

func (a *Adapter) onChange(c Change) {
	a.apply(c.Snapshot)
}

// apply reconciles the binding with snap. Snapshots older than the last
// applied one are dropped, so concurrent notifications cannot regress.
func (a *Adapter) apply(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || (snap.Version < a.lastVersion) {
		return
	}
	a.lastVersion = snap.Version

	if snap.CurrentTrack == nil {
		if a.boundTrackID != "" {
			zlog.Debug().Msg("playback: no current track, releasing widget")
		}
		a.unbindLocked()
		a.isPlaying, a.volume = snap.IsPlaying, snap.Volume
		return
	}

	// Same ID with new media (an edited song) rebinds too. An unresolvable
	// URL leaves boundMediaID empty, which compares equal here.
	mediaID, _ := ResolveMediaID(snap.CurrentTrack.MediaURL)
	if snap.CurrentTrack.ID != a.boundTrackID || mediaID != a.boundMediaID {
		a.isPlaying, a.volume = snap.IsPlaying, snap.Volume
		a.bindLocked(snap)
		return
	}

	if a.widget != nil && (snap.IsPlaying != a.isPlaying || snap.Volume != a.volume) {
		a.isPlaying, a.volume = snap.IsPlaying, snap.Volume
		a.applyTransportLocked()
		return
	}
	a.isPlaying, a.volume = snap.IsPlaying, snap.Volume
}

func (a *Adapter) bindLocked(snap Snapshot) {
	a.unbindLocked()

	t := snap.CurrentTrack
	a.boundTrackID = t.ID
	a.generation++
	gen := a.generation

	mediaID, ok := ResolveMediaID(t.MediaURL)
	if !ok {
		zlog.Error().Msgf("playback: invalid media URL, nothing to play. track=%v, url=%v", t.ID, t.MediaURL)
		return
	}
	a.boundMediaID = mediaID
	a.renderable = true

	ctx, cancel := context.WithCancel(context.Background())
	a.bindCancel = cancel

	req := BindRequest{
		MediaID:      mediaID,
		Title:        t.Title,
		DurationHint: t.DurationHint(),
		Options:      a.config.Options,
	}
	events := WidgetEvents{
		Ready:        func(w Widget) { a.onReady(gen, w) },
		StateChanged: func(st WidgetState) { a.onStateChanged(gen, st) },
	}
	if err := a.binder.Bind(ctx, req, events); err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to bind widget. track=%v, media=%v", t.ID, mediaID)
		cancel()
		a.bindCancel = nil
		a.renderable = false
		return
	}
	zlog.Debug().Msgf("playback: widget bound. track=%v, media=%v, generation=%v", t.ID, mediaID, gen)
}

// unbindLocked stops polling and releases the widget. Callbacks from the
// released binding are ignored afterwards.
func (a *Adapter) unbindLocked() {
	a.stopPollLocked()
	if a.bindCancel != nil {
		a.bindCancel()
		a.bindCancel = nil
	}
	if a.widget != nil {
		w := a.widget
		a.widget = nil
		a.call("close", w.Close)
	}
	a.generation++
	a.boundTrackID = ""
	a.boundMediaID = ""
	a.renderable = false
}

func (a *Adapter) onReady(gen uint64, w Widget) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || gen != a.generation {
		zlog.Debug().Msgf("playback: stale widget ready ignored. generation=%v", gen)
		a.call("close", w.Close)
		return
	}
	a.widget = w
	zlog.Debug().Msgf("playback: widget ready. media=%v", a.boundMediaID)
	a.applyTransportLocked()
}

func (a *Adapter) onStateChanged(gen uint64, st WidgetState) {
	a.mu.Lock()
	current := !a.closed && gen == a.generation
	a.mu.Unlock()

	if !current {
		return
	}
	zlog.Debug().Msgf("playback: widget state changed. state=%v", st)
	if st == WidgetEnded {
		if !a.queue.NextSong() {
			zlog.Debug().Msg("playback: end of queue reached")
		}
	}
}

// applyTransportLocked pushes isPlaying and volume to the widget and
// starts or stops the progress poller accordingly.
func (a *Adapter) applyTransportLocked() {
	w := a.widget
	if w == nil {
		return
	}
	if a.isPlaying {
		a.call("play", w.PlayVideo)
	} else {
		a.call("pause", w.PauseVideo)
	}
	percent := int(a.volume*100 + 0.5)
	a.call("set volume", func() error { return w.SetVolume(percent) })

	if a.isPlaying {
		a.startPollLocked()
	} else {
		a.stopPollLocked()
	}
}

func (a *Adapter) startPollLocked() {
	if a.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.pollCancel = cancel
	go a.poll(ctx, a.generation, a.boundTrackID, a.widget)
}

func (a *Adapter) stopPollLocked() {
	if a.pollCancel != nil {
		a.pollCancel()
		a.pollCancel = nil
	}
}

// poll reads position and duration from w on every tick until ctx is
// cancelled or the binding generation moves on.
func (a *Adapter) poll(ctx context.Context, gen uint64, trackID string, w Widget) {
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !a.isCurrent(gen) {
			return
		}
		a.pollOnce(ctx, trackID, w)
	}
}

func (a *Adapter) pollOnce(ctx context.Context, trackID string, w Widget) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: panic while polling widget: %v", r)
		}
	}()

	pos, err := w.CurrentTime()
	if err != nil {
		zlog.Debug().Err(err).Msg("playback: failed to read current time")
		return
	}
	dur, err := w.Duration()
	if err != nil {
		zlog.Debug().Err(err).Msg("playback: failed to read duration")
		return
	}
	if ctx.Err() != nil {
		return
	}
	if dur > 0 && pos > dur {
		pos = dur
	}
	a.store.reportPlayback(trackID, pos, dur)
}

func (a *Adapter) isCurrent(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && gen == a.generation
}

// UserSeek seeks the widget to seconds and records the request in the store.
// Without a ready widget it does nothing and returns ErrNoWidget.
func (a *Adapter) UserSeek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAdapterClosed
	}
	w := a.widget
	if w == nil {
		a.mu.Unlock()
		return ErrNoWidget
	}
	a.call("seek", func() error { return w.SeekTo(seconds) })
	a.mu.Unlock()

	a.store.RequestSeek(seconds)
	return nil
}

// SeekFraction seeks to fraction (0..1) of the current duration, as a
// click on a progress bar would.
func (a *Adapter) SeekFraction(fraction float64) error {
	fraction = clamp(fraction, 0, 1)
	return a.UserSeek(fraction * a.store.Snapshot().Duration)
}

// Renderable reports whether the current track resolved to a media id.
func (a *Adapter) Renderable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.renderable
}

// MediaID returns the bound media id, or "" if none.
func (a *Adapter) MediaID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.boundMediaID
}

// Ready reports whether a widget handle is held.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.widget != nil
}

// Close releases the widget and stops observing the store.
func (a *Adapter) Close() {
	a.unsubscribe()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.unbindLocked()
	a.closed = true
}

// call runs a widget command. Errors are logged and panics recovered.
func (a *Adapter) call(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: panic in widget %s: %v", op, r)
		}
	}()
	if err := fn(); err != nil {
		zlog.Warn().Err(err).Msgf("playback: widget %s failed", op)
	}
}
