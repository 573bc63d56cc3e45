package session

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/infra/clock"
	"github.com/osa030/melodify/internal/infra/config"
	"github.com/osa030/melodify/internal/infra/mpv"
)

// NewBinder creates the widget binder selected by cfg.
func NewBinder(cfg config.WidgetConfig) (playback.Binder, error) {
	switch cfg.Type {
	case "", "clock":
		s, err := clock.ParseSettings(cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid clock widget settings")
		}
		return clock.NewBinder(s), nil
	case "mpv":
		s, err := mpv.ParseSettings(cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid mpv widget settings")
		}
		return mpv.NewBinder(s), nil
	default:
		return nil, errors.Newf("unknown widget type: %s", cfg.Type)
	}
}
