// Package mpv drives an mpv process over its JSON IPC socket as a media
// widget. mpv resolves video-site URLs through its ytdl hook.
package mpv

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/playback"
)

const (
	commandTimeout = 2 * time.Second
	pauseObserver  = 1
)

// Settings represents widget settings from player.widget.settings.
type Settings struct {
	Binary          string   `yaml:"binary" mapstructure:"binary" default:"mpv" validate:"required"`
	SocketDir       string   `yaml:"socket_dir" mapstructure:"socket_dir"`
	Video           bool     `yaml:"video" mapstructure:"video"` // audio only unless set
	ExtraArgs       []string `yaml:"extra_args" mapstructure:"extra_args"`
	StartTimeoutSec int      `yaml:"start_timeout_sec" mapstructure:"start_timeout_sec" default:"10" validate:"gte=1,lte=60"`
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
	if s.SocketDir == "" {
		s.SocketDir = os.TempDir()
	}
	return s, nil
}

// Binder starts one mpv process per binding.
type Binder struct {
	settings Settings
	dial     func(ctx context.Context, path string) (net.Conn, error)
}

// NewBinder creates a new mpv binder.
func NewBinder(s Settings) *Binder {
	return &Binder{settings: s, dial: dialSocket}
}

func (b *Binder) args(req playback.BindRequest, socket string) []string {
	args := []string{
		"--idle=no",
		"--no-terminal",
		"--input-ipc-server=" + socket,
	}
	if !b.settings.Video {
		args = append(args, "--no-video")
	}
	if !req.Options.Autoplay {
		args = append(args, "--pause")
	}
	if req.Options.Fullscreen {
		args = append(args, "--fullscreen")
	}
	args = append(args, b.settings.ExtraArgs...)
	return append(args, playback.WatchURL(req.MediaID))
}

// Bind starts mpv for req. Ready is raised once the IPC socket answers.
func (b *Binder) Bind(ctx context.Context, req playback.BindRequest, events playback.WidgetEvents) error {
	socket := filepath.Join(b.settings.SocketDir, fmt.Sprintf("melodify-mpv-%s.sock", uuid.NewString()))

	cmd := exec.CommandContext(ctx, b.settings.Binary, b.args(req, socket)...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", b.settings.Binary)
	}
	zlog.Info().Msgf("mpv: started pid=%d media=%s", cmd.Process.Pid, req.MediaID)

	go func() {
		_ = cmd.Wait()
		_ = os.Remove(socket)
		zlog.Debug().Msgf("mpv: exited media=%s", req.MediaID)
	}()

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, time.Duration(b.settings.StartTimeoutSec)*time.Second)
		defer cancel()

		conn, err := b.dial(dialCtx, socket)
		if err != nil {
			zlog.Error().Msgf("mpv: ipc connect failed: media=%s err=%v", req.MediaID, err)
			_ = cmd.Process.Kill()
			return
		}
		w := newWidget(conn)
		w.process = cmd.Process
		w.serve(ctx, events)
	}()
	return nil
}

// dialSocket retries until mpv has created the socket.
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(err, "socket not ready")
		case <-ticker.C:
		}
	}
}

// Widget is a handle to one mpv process.
type Widget struct {
	ipc     *ipc
	process *os.Process

	mu     sync.Mutex
	closed bool
}

func newWidget(conn net.Conn) *Widget {
	return &Widget{ipc: newIPC(conn)}
}

// serve raises Ready and then translates mpv events until ctx ends.
func (w *Widget) serve(ctx context.Context, events playback.WidgetEvents) {
	if _, err := w.command("observe_property", pauseObserver, "pause"); err != nil {
		zlog.Warn().Msgf("mpv: observe pause failed: %v", err)
	}
	if ctx.Err() != nil {
		_ = w.Close()
		return
	}
	if events.Ready != nil {
		events.Ready(w)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case <-w.ipc.done:
			return
		case msg := <-w.ipc.events:
			st, ok := translate(msg)
			if ok && ctx.Err() == nil && events.StateChanged != nil {
				events.StateChanged(st)
			}
		}
	}
}

// translate maps an mpv event to a widget state.
func translate(msg message) (playback.WidgetState, bool) {
	switch msg.Event {
	case "end-file":
		if msg.Reason == "eof" {
			return playback.WidgetEnded, true
		}
	case "seek":
		return playback.WidgetBuffering, true
	case "property-change":
		if msg.Name != "pause" {
			return 0, false
		}
		var paused bool
		if err := json.Unmarshal(msg.Data, &paused); err != nil {
			return 0, false
		}
		if paused {
			return playback.WidgetPaused, true
		}
		return playback.WidgetPlaying, true
	}
	return 0, false
}

func (w *Widget) command(args ...any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return w.ipc.command(ctx, args...)
}

func (w *Widget) setProperty(name string, value any) error {
	_, err := w.command("set_property", name, value)
	return err
}

func (w *Widget) getFloat(name string) (float64, error) {
	data, err := w.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s", name)
	}
	return v, nil
}

// PlayVideo resumes playback.
func (w *Widget) PlayVideo() error { return w.setProperty("pause", false) }

// PauseVideo pauses playback.
func (w *Widget) PauseVideo() error { return w.setProperty("pause", true) }

// SeekTo seeks to an absolute position.
func (w *Widget) SeekTo(seconds float64) error {
	_, err := w.command("seek", max(seconds, 0), "absolute")
	return err
}

// SetVolume sets the volume in percent.
func (w *Widget) SetVolume(percent int) error {
	return w.setProperty("volume", min(max(percent, 0), 100))
}

// CurrentTime returns the playback position. mpv reports an error until
// the file is loaded, which is returned as 0.
func (w *Widget) CurrentTime() (float64, error) {
	v, err := w.getFloat("time-pos")
	if err != nil && !errors.Is(err, ErrDisconnected) {
		return 0, nil
	}
	return v, err
}

// Duration returns the media length.
func (w *Widget) Duration() (float64, error) {
	v, err := w.getFloat("duration")
	if err != nil && !errors.Is(err, ErrDisconnected) {
		return 0, nil
	}
	return v, err
}

// Close quits mpv.
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	_, err := w.ipc.command(ctx, "quit")
	cancel()
	w.ipc.close()
	if err != nil && w.process != nil {
		_ = w.process.Kill()
	}
	return nil
}
