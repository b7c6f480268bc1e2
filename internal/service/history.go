package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"taximeter/internal/domain"
	"taximeter/internal/repository"
)

// HistoryService exposes completed rides.
type HistoryService struct {
	trips repository.TripRepository
	log   logrus.FieldLogger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(trips repository.TripRepository, log logrus.FieldLogger) *HistoryService {
	return &HistoryService{trips: trips, log: log}
}

// List returns the most recent rides, newest first.
func (s *HistoryService) List(ctx context.Context) ([]*domain.CompletedRide, error) {
	rides, err := s.trips.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if rides == nil {
		rides = []*domain.CompletedRide{}
	}
	return rides, nil
}

// Get returns one ride.
func (s *HistoryService) Get(ctx context.Context, id string) (*domain.CompletedRide, error) {
	if id == "" {
		return nil, ErrInvalidTripID
	}
	return s.trips.GetByID(ctx, id)
}

// SetPaid marks a ride as paid or unpaid and returns the updated record.
func (s *HistoryService) SetPaid(ctx context.Context, id string, paid bool) (*domain.CompletedRide, error) {
	if id == "" {
		return nil, ErrInvalidTripID
	}
	if err := s.trips.SetPaid(ctx, id, paid); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"ride_id": id, "paid": paid}).Info("ride payment flag updated")
	return s.trips.GetByID(ctx, id)
}

// Clear deletes the whole history.
func (s *HistoryService) Clear(ctx context.Context) error {
	if err := s.trips.DeleteAll(ctx); err != nil {
		return err
	}
	s.log.Info("ride history cleared")
	return nil
}
