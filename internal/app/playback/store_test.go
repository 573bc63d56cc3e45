package playback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/domain/track"
)

func testTrack(id string) track.Track {
	return track.Track{
		ID:       id,
		Title:    "Song " + id,
		Duration: 200,
		MediaURL: "https://www.youtube.com/watch?v=" + id + "0123456789"[:11-len(id)],
	}
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(DefaultVolume)
	snap := s.Snapshot()

	assert.Nil(t, snap.CurrentTrack)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, 0.5, snap.Volume)
	assert.False(t, snap.IsMuted)
	assert.Zero(t, snap.Progress)
	assert.Zero(t, snap.Duration)

	assert.Equal(t, DefaultVolume, NewStore(3).Snapshot().Volume)
}

func TestStore_SetCurrentTrack(t *testing.T) {
	s := NewStore(DefaultVolume)
	s.SetCurrentTrack(testTrack("a"))

	snap := s.Snapshot()
	require.NotNil(t, snap.CurrentTrack)
	assert.Equal(t, "a", snap.CurrentTrack.ID)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, 200.0, snap.Duration, "falls back to the catalog hint")

	s.SetDuration(243.5)
	s.ReportProgress(12)
	s.SetCurrentTrack(testTrack("a"))
	snap = s.Snapshot()
	assert.Equal(t, 243.5, snap.Duration, "same track keeps live duration")
	assert.Equal(t, 12.0, snap.Progress)

	s.SetCurrentTrack(testTrack("b"))
	snap = s.Snapshot()
	assert.Equal(t, 200.0, snap.Duration)
	assert.Zero(t, snap.Progress)
}

func TestStore_Transport(t *testing.T) {
	s := NewStore(DefaultVolume)

	s.Play()
	assert.True(t, s.Snapshot().IsPlaying)
	s.Play()
	assert.True(t, s.Snapshot().IsPlaying)
	s.Pause()
	assert.False(t, s.Snapshot().IsPlaying)
	s.Pause()
	assert.False(t, s.Snapshot().IsPlaying)

	s.TogglePlay()
	assert.True(t, s.Snapshot().IsPlaying)
	s.TogglePlay()
	assert.False(t, s.Snapshot().IsPlaying)
}

func TestStore_ToggleMute(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(s *Store)
		expected float64
	}{
		{
			name:     "mute from default",
			setup:    func(s *Store) {},
			expected: 0,
		},
		{
			name: "restore volume set before zeroing",
			setup: func(s *Store) {
				s.SetVolume(0.8)
				s.SetVolume(0)
			},
			expected: 0.8,
		},
		{
			name: "restore default when nothing remembered",
			setup: func(s *Store) {
				s.SetVolume(0)
			},
			expected: DefaultVolume,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(DefaultVolume)
			tt.setup(s)
			s.ToggleMute()
			snap := s.Snapshot()
			assert.Equal(t, tt.expected, snap.Volume)
			assert.Equal(t, tt.expected == 0, snap.IsMuted)
		})
	}
}

func TestStore_ToggleMuteRestoresInitialVolume(t *testing.T) {
	tests := []struct {
		name     string
		initial  float64
		expected float64
	}{
		{name: "configured volume", initial: 0.8, expected: 0.8},
		{name: "full volume", initial: 1, expected: 1},
		{name: "started muted", initial: 0, expected: DefaultVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.initial)
			s.SetVolume(0)
			s.ToggleMute()
			assert.InDelta(t, tt.expected, s.Snapshot().Volume, 1e-9)
		})
	}
}

func TestStore_ToggleMuteTwiceRestores(t *testing.T) {
	for _, v := range []float64{0, 0.2, 0.5, 1} {
		s := NewStore(DefaultVolume)
		s.SetVolume(0.3)
		s.SetVolume(v)
		before := s.Snapshot()

		s.ToggleMute()
		s.ToggleMute()

		after := s.Snapshot()
		assert.Equal(t, before.Volume, after.Volume, "volume %v", v)
		assert.Equal(t, before.IsMuted, after.IsMuted, "volume %v", v)
	}
}

func TestStore_SetVolumeClamps(t *testing.T) {
	s := NewStore(DefaultVolume)
	s.SetVolume(1.7)
	assert.Equal(t, 1.0, s.Snapshot().Volume)
	s.SetVolume(-1)
	assert.Equal(t, 0.0, s.Snapshot().Volume)
	assert.True(t, s.Snapshot().IsMuted)
}

func TestStore_ProgressClamped(t *testing.T) {
	s := NewStore(DefaultVolume)
	s.SetCurrentTrack(testTrack("a"))
	s.SetDuration(180)

	s.ReportProgress(-4)
	assert.Zero(t, s.Snapshot().Progress)
	s.ReportProgress(999)
	assert.Equal(t, 180.0, s.Snapshot().Progress)

	s.SeekTo(42)
	assert.Equal(t, 42.0, s.Snapshot().Progress)

	s.SetDuration(30)
	assert.Equal(t, 30.0, s.Snapshot().Progress)
}

func TestStore_ReportPlaybackIgnoresOtherTrack(t *testing.T) {
	s := NewStore(DefaultVolume)
	s.SetCurrentTrack(testTrack("a"))

	assert.False(t, s.reportPlayback("b", 50, 190))
	assert.Zero(t, s.Snapshot().Progress)

	assert.True(t, s.reportPlayback("a", 50, 190))
	assert.Equal(t, 50.0, s.Snapshot().Progress)
	assert.Equal(t, 190.0, s.Snapshot().Duration)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(DefaultVolume)
	s.SetCurrentTrack(testTrack("a"))
	s.SetVolume(0.7)
	s.SetDuration(100)
	s.ReportProgress(10)

	s.Reset()

	snap := s.Snapshot()
	assert.Nil(t, snap.CurrentTrack)
	assert.False(t, snap.IsPlaying)
	assert.Zero(t, snap.Progress)
	assert.Zero(t, snap.Duration)
	assert.Equal(t, 0.7, snap.Volume)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(DefaultVolume)

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.SetCurrentTrack(testTrack("a"))
	s.Pause()
	unsubscribe()
	s.Play()

	require.Len(t, changes, 2)
	assert.True(t, changes[0].Fields.Has(FieldTrack))
	assert.Equal(t, FieldTransport, changes[1].Fields)
	assert.False(t, changes[1].Snapshot.IsPlaying)
	assert.Less(t, changes[0].Snapshot.Version, changes[1].Snapshot.Version)

	// Unsubscribing twice is harmless.
	unsubscribe()
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	s := NewStore(DefaultVolume)
	var seen Snapshot
	s.Subscribe(func(Change) { seen = s.Snapshot() })

	s.SetVolume(0.9)
	assert.Equal(t, 0.9, seen.Volume)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := NewStore(DefaultVolume)
	s.SetCurrentTrack(testTrack("a"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); s.TogglePlay() }()
		go func() { defer wg.Done(); s.ToggleMute() }()
		go func(i int) { defer wg.Done(); s.ReportProgress(float64(i)) }(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, uint64(151), snap.Version)
	assert.Equal(t, snap.Volume == 0, snap.IsMuted)
}

func TestField_String(t *testing.T) {
	assert.Equal(t, "none", Field(0).String())
	assert.Equal(t, "transport", FieldTransport.String())
	assert.Equal(t, "track|progress", (FieldTrack | FieldProgress).String())
}
