package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/melodify/internal/domain/track"
)

// PremiumConfig represents the configuration for PremiumFilter.
type PremiumConfig struct {
	// Anonymous listeners may play premium songs when set.
	AllowAnonymous bool `yaml:"allow_anonymous" mapstructure:"allow_anonymous"`
}

// PremiumFilter drops premium songs the listener has not purchased.
type PremiumFilter struct {
	config PremiumConfig
}

func (f *PremiumFilter) Name() string {
	return "premium_filter"
}

func (f *PremiumFilter) Description() string {
	return "Drops premium songs without a completed purchase"
}

func (f *PremiumFilter) ReturnCodes() []string {
	return []string{"premium_not_purchased"}
}

func (f *PremiumFilter) ValidateConfig(settings map[string]any) error {
	var config PremiumConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.config = config
	return nil
}

func (f *PremiumFilter) AppliesTo(src Source) bool {
	return true
}

func (f *PremiumFilter) Check(ctx context.Context, t track.Track, s *Subject) Result {
	if !t.IsPremium {
		return Accept()
	}
	if s == nil || s.UserID == "" {
		if f.config.AllowAnonymous {
			return Accept()
		}
		return Reject("premium_not_purchased")
	}
	if s.Owned[t.ID] {
		return Accept()
	}
	return Reject("premium_not_purchased")
}

func init() {
	Register("premium_filter", func() Filter {
		return &PremiumFilter{}
	})
}
