package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/domain/track"
)

type fakeWidget struct {
	mu       sync.Mutex
	calls    []string
	volume   int
	position float64
	duration float64
	closed   bool
	panicAt  string
}

func (w *fakeWidget) record(call string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.panicAt == call {
		panic("widget exploded")
	}
	w.calls = append(w.calls, call)
}

func (w *fakeWidget) PlayVideo() error  { w.record("play"); return nil }
func (w *fakeWidget) PauseVideo() error { w.record("pause"); return nil }
func (w *fakeWidget) SeekTo(seconds float64) error {
	w.record("seek")
	w.mu.Lock()
	w.position = seconds
	w.mu.Unlock()
	return nil
}
func (w *fakeWidget) SetVolume(percent int) error {
	w.record("volume")
	w.mu.Lock()
	w.volume = percent
	w.mu.Unlock()
	return nil
}
func (w *fakeWidget) CurrentTime() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position, nil
}
func (w *fakeWidget) Duration() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duration, nil
}
func (w *fakeWidget) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWidget) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWidget) Volume() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.volume
}

func (w *fakeWidget) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWidget) setPosition(pos, dur float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.position, w.duration = pos, dur
}

type binding struct {
	ctx    context.Context
	req    BindRequest
	events WidgetEvents
}

// fakeBinder records bindings; tests deliver widget events themselves.
type fakeBinder struct {
	mu       sync.Mutex
	bindings []binding
	err      error
}

func (b *fakeBinder) Bind(ctx context.Context, req BindRequest, events WidgetEvents) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.bindings = append(b.bindings, binding{ctx: ctx, req: req, events: events})
	return nil
}

func (b *fakeBinder) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bindings)
}

func (b *fakeBinder) Last(t *testing.T) binding {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.bindings)
	return b.bindings[len(b.bindings)-1]
}

func (b *fakeBinder) At(i int) binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindings[i]
}

type adapterFixture struct {
	store   *Store
	queue   *Queue
	binder  *fakeBinder
	adapter *Adapter
}

func newAdapterFixture(t *testing.T, poll time.Duration) *adapterFixture {
	t.Helper()
	store := NewStore(DefaultVolume)
	queue := NewQueue(store)
	binder := &fakeBinder{}
	adapter := NewAdapter(store, queue, binder, AdapterConfig{
		PollInterval: poll,
		Options:      DefaultWidgetOptions(),
	})
	t.Cleanup(adapter.Close)
	return &adapterFixture{store: store, queue: queue, binder: binder, adapter: adapter}
}

func (f *adapterFixture) ready(t *testing.T) *fakeWidget {
	t.Helper()
	w := &fakeWidget{}
	f.binder.Last(t).events.Ready(w)
	return w
}

func tracksOf(ids ...string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = testTrack(id)
	}
	return out
}

func TestAdapter_BindsCurrentTrack(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	assert.Equal(t, 0, f.binder.Count())
	assert.False(t, f.adapter.Renderable())

	f.queue.SetQueue(tracksOf("a"), 0)

	require.Equal(t, 1, f.binder.Count())
	b := f.binder.Last(t)
	assert.Equal(t, "a0123456789", b.req.MediaID)
	assert.Equal(t, "Song a", b.req.Title)
	assert.Equal(t, 200*time.Second, b.req.DurationHint)
	assert.True(t, b.req.Options.Autoplay)
	assert.True(t, f.adapter.Renderable())
	assert.Equal(t, "a0123456789", f.adapter.MediaID())
	assert.False(t, f.adapter.Ready())
}

func TestAdapter_RebindsWhenMediaChanges(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)

	edited := testTrack("a")
	edited.MediaURL = "https://youtu.be/zzzzzzzzzzz"
	f.store.SetCurrentTrack(edited)

	require.Equal(t, 2, f.binder.Count())
	assert.Equal(t, "zzzzzzzzzzz", f.binder.Last(t).req.MediaID)
	assert.Equal(t, "zzzzzzzzzzz", f.adapter.MediaID())
	assert.True(t, w.IsClosed())

	// Same track and media: no rebind.
	f.store.SetCurrentTrack(edited)
	assert.Equal(t, 2, f.binder.Count())
}

func TestAdapter_InvalidMediaDoesNotRebind(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	bad := testTrack("a")
	bad.MediaURL = "not a video"
	f.store.SetCurrentTrack(bad)

	assert.Equal(t, 0, f.binder.Count())
	assert.False(t, f.adapter.Renderable())

	f.store.Pause()
	f.store.Play()
	assert.Equal(t, 0, f.binder.Count())
	assert.False(t, f.adapter.Renderable())
}

func TestAdapter_ReadyAppliesTransport(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *adapterFixture)
		expected []string
		volume   int
	}{
		{
			name:     "playing",
			setup:    func(f *adapterFixture) {},
			expected: []string{"play", "volume"},
			volume:   50,
		},
		{
			name:     "paused before ready",
			setup:    func(f *adapterFixture) { f.store.Pause() },
			expected: []string{"pause", "volume"},
			volume:   50,
		},
		{
			name:     "muted before ready",
			setup:    func(f *adapterFixture) { f.store.ToggleMute() },
			expected: []string{"play", "volume"},
			volume:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdapterFixture(t, time.Hour)
			f.queue.SetQueue(tracksOf("a"), 0)
			tt.setup(f)

			w := f.ready(t)

			assert.Equal(t, tt.expected, w.Calls())
			assert.Equal(t, tt.volume, w.Volume())
			assert.True(t, f.adapter.Ready())
		})
	}
}

func TestAdapter_ForwardsTransportAndVolume(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)

	f.store.Pause()
	f.store.Play()
	f.store.SetVolume(0.8)
	f.store.Play() // unchanged, no command

	assert.Equal(t, []string{"play", "volume", "pause", "volume", "play", "volume", "play", "volume"}, w.Calls())
	assert.Equal(t, 80, w.Volume())
}

func TestAdapter_NoCommandsBeforeReady(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)

	f.store.Pause()
	f.store.SetVolume(0.2)
	assert.ErrorIs(t, f.adapter.UserSeek(30), ErrNoWidget)
	assert.Zero(t, f.store.Snapshot().Progress, "seek without a widget records nothing")

	w := f.ready(t)
	assert.Equal(t, []string{"pause", "volume"}, w.Calls())
	assert.Equal(t, 20, w.Volume())
}

func TestAdapter_RebindsOnTrackChange(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a", "b"), 0)
	first := f.binder.Last(t)
	w1 := f.ready(t)

	f.queue.NextSong()

	require.Equal(t, 2, f.binder.Count())
	assert.Equal(t, "b0123456789", f.binder.Last(t).req.MediaID)
	assert.True(t, w1.IsClosed())
	assert.Error(t, first.ctx.Err(), "old binding is cancelled")
	assert.False(t, f.adapter.Ready())

	// Transport changes on the same track do not rebind.
	f.ready(t)
	f.store.Pause()
	f.store.SetVolume(0.1)
	assert.Equal(t, 2, f.binder.Count())
}

func TestAdapter_StaleReadyIgnored(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a", "b"), 0)
	stale := f.binder.At(0)
	f.queue.NextSong()

	old := &fakeWidget{}
	stale.events.Ready(old)

	assert.False(t, f.adapter.Ready())
	assert.Empty(t, old.Calls())
	assert.True(t, old.IsClosed())
}

func TestAdapter_EndedAdvancesQueue(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a", "b"), 0)
	f.ready(t)

	f.binder.Last(t).events.StateChanged(WidgetEnded)

	assert.Equal(t, 1, f.queue.CurrentIndex())
	assert.Equal(t, "b", f.store.Snapshot().CurrentTrack.ID)
	assert.Equal(t, 2, f.binder.Count())
}

func TestAdapter_EndedAtLastTrack(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	f.ready(t)

	f.binder.Last(t).events.StateChanged(WidgetEnded)

	snap := f.store.Snapshot()
	assert.Equal(t, 0, f.queue.CurrentIndex())
	assert.Equal(t, "a", snap.CurrentTrack.ID)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, 1, f.binder.Count())
}

func TestAdapter_StaleEndedIgnored(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a", "b", "c"), 0)
	stale := f.binder.At(0)
	f.queue.NextSong()

	stale.events.StateChanged(WidgetEnded)

	assert.Equal(t, 1, f.queue.CurrentIndex())
}

func TestAdapter_OtherStatesIgnored(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a", "b"), 0)
	f.ready(t)

	for _, st := range []WidgetState{WidgetPlaying, WidgetPaused, WidgetBuffering, WidgetCued, WidgetUnstarted} {
		f.binder.Last(t).events.StateChanged(st)
	}

	assert.Equal(t, 0, f.queue.CurrentIndex())
}

func TestAdapter_UnresolvableMedia(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	bad := testTrack("a")
	bad.MediaURL = "https://example.com/not-a-video"

	f.queue.SetQueue([]track.Track{bad, testTrack("b")}, 0)

	assert.Equal(t, 0, f.binder.Count())
	assert.False(t, f.adapter.Renderable())
	assert.Equal(t, "", f.adapter.MediaID())
	assert.Equal(t, "a", f.store.Snapshot().CurrentTrack.ID)

	f.queue.NextSong()
	assert.Equal(t, 1, f.binder.Count())
	assert.True(t, f.adapter.Renderable())
}

func TestAdapter_BindError(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.binder.err = errors.New("no display")

	f.queue.SetQueue(tracksOf("a"), 0)

	assert.False(t, f.adapter.Renderable())
}

func TestAdapter_ResetReleasesWidget(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)

	f.store.Reset()

	assert.True(t, w.IsClosed())
	assert.False(t, f.adapter.Ready())
	assert.False(t, f.adapter.Renderable())

	// The same track selected again binds afresh.
	f.queue.SetQueue(tracksOf("a"), 0)
	assert.Equal(t, 2, f.binder.Count())
}

func TestAdapter_ClearQueueKeepsWidget(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)

	f.queue.ClearQueue()

	assert.False(t, w.IsClosed())
	assert.True(t, f.adapter.Renderable())
	assert.Equal(t, 1, f.binder.Count())
}

func TestAdapter_UserSeek(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)

	require.NoError(t, f.adapter.UserSeek(42))

	assert.Contains(t, w.Calls(), "seek")
	pos, _ := w.CurrentTime()
	assert.Equal(t, 42.0, pos)
	assert.Equal(t, 42.0, f.store.Snapshot().Progress)
}

func TestAdapter_SeekFraction(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0) // duration hint 200s
	w := f.ready(t)

	require.NoError(t, f.adapter.SeekFraction(0.25))

	pos, _ := w.CurrentTime()
	assert.Equal(t, 50.0, pos)
	assert.Equal(t, 50.0, f.store.Snapshot().Progress)

	require.NoError(t, f.adapter.SeekFraction(7))
	assert.Equal(t, 200.0, f.store.Snapshot().Progress)
}

func TestAdapter_PollsWhilePlaying(t *testing.T) {
	f := newAdapterFixture(t, 5*time.Millisecond)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)
	w.setPosition(12.5, 243)

	require.Eventually(t, func() bool {
		snap := f.store.Snapshot()
		return snap.Progress == 12.5 && snap.Duration == 243
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_PollClampsProgress(t *testing.T) {
	f := newAdapterFixture(t, 5*time.Millisecond)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)
	w.setPosition(300, 240)

	require.Eventually(t, func() bool {
		return f.store.Snapshot().Duration == 240
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 240.0, f.store.Snapshot().Progress)
}

func TestAdapter_PollStopsWhenPaused(t *testing.T) {
	f := newAdapterFixture(t, 5*time.Millisecond)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := f.ready(t)
	w.setPosition(10, 200)
	require.Eventually(t, func() bool { return f.store.Snapshot().Progress == 10 }, time.Second, 5*time.Millisecond)

	f.store.Pause()
	w.setPosition(20, 200)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 10.0, f.store.Snapshot().Progress)

	f.store.Play()
	require.Eventually(t, func() bool { return f.store.Snapshot().Progress == 20 }, time.Second, 5*time.Millisecond)
}

func TestAdapter_OldPollerNeverWritesNewTrack(t *testing.T) {
	f := newAdapterFixture(t, 5*time.Millisecond)
	f.queue.SetQueue(tracksOf("a", "b"), 0)
	w1 := f.ready(t)
	w1.setPosition(99, 200)
	require.Eventually(t, func() bool { return f.store.Snapshot().Progress == 99 }, time.Second, 5*time.Millisecond)

	f.queue.NextSong()
	time.Sleep(50 * time.Millisecond)

	snap := f.store.Snapshot()
	assert.Equal(t, "b", snap.CurrentTrack.ID)
	assert.Zero(t, snap.Progress)
}

func TestAdapter_WidgetPanicRecovered(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a"), 0)
	w := &fakeWidget{panicAt: "volume"}

	assert.NotPanics(t, func() { f.binder.Last(t).events.Ready(w) })
	assert.True(t, f.adapter.Ready())
}

func TestAdapter_Close(t *testing.T) {
	f := newAdapterFixture(t, time.Hour)
	f.queue.SetQueue(tracksOf("a", "b"), 0)
	w := f.ready(t)

	f.adapter.Close()

	assert.True(t, w.IsClosed())
	f.queue.NextSong()
	assert.Equal(t, 1, f.binder.Count(), "closed adapter no longer follows the store")
	assert.ErrorIs(t, f.adapter.UserSeek(1), ErrAdapterClosed)

	// Closing twice is harmless.
	f.adapter.Close()
}
