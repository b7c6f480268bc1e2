package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"taximeter/internal/domain"
	"taximeter/internal/redis"
	"taximeter/internal/repository"
)

// SettingsService reads and writes the rate settings of the meter.
type SettingsService struct {
	meterID string
	repo    repository.SettingsRepository
	cache   redis.SettingsCache
	log     logrus.FieldLogger
}

// NewSettingsService creates a new SettingsService. cache may be nil.
func NewSettingsService(meterID string, repo repository.SettingsRepository, cache redis.SettingsCache, log logrus.FieldLogger) *SettingsService {
	return &SettingsService{
		meterID: meterID,
		repo:    repo,
		cache:   cache,
		log:     log,
	}
}

// Get returns the current settings, falling back to the defaults when none
// have been saved.
func (s *SettingsService) Get(ctx context.Context) (domain.RateConfig, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSettings(ctx, s.meterID)
		if err != nil {
			s.log.WithError(err).Warn("settings cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	stored, err := s.repo.Get(ctx, s.meterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultRateConfig(), nil
		}
		return domain.RateConfig{}, fmt.Errorf("failed to load settings: %w", err)
	}

	s.fillCache(ctx, *stored)
	return *stored, nil
}

// Save validates and stores new settings. A ride already in progress keeps
// the rates it started with.
func (s *SettingsService) Save(ctx context.Context, rates domain.RateConfig) (domain.RateConfig, error) {
	if rates.Rounding == "" {
		rates.Rounding = domain.RoundingNone
	}
	if err := rates.Validate(); err != nil {
		return domain.RateConfig{}, fmt.Errorf("%w: %v", ErrInvalidRateConfig, err)
	}

	if err := s.repo.Save(ctx, s.meterID, rates); err != nil {
		return domain.RateConfig{}, fmt.Errorf("failed to save settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSettings(ctx, s.meterID); err != nil {
			s.log.WithError(err).Warn("settings cache invalidation failed")
		}
	}
	s.fillCache(ctx, rates)

	s.log.WithFields(logrus.Fields{
		"base_fare":  rates.BaseFare,
		"per_km":     rates.PerKm,
		"per_minute": rates.PerMinute,
	}).Info("rate settings saved")

	return rates, nil
}

func (s *SettingsService) fillCache(ctx context.Context, rates domain.RateConfig) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSettings(ctx, s.meterID, rates); err != nil {
		s.log.WithError(err).Warn("settings cache write failed")
	}
}
