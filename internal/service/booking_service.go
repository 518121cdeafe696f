package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

var (
	ErrBookingInvalid  = errors.New("invalid booking")
	ErrBookingNotFound = errors.New("booking not found")
)

const dateLayout = "2006-01-02"

type BookingService struct {
	repo      *repository.BookingRepository
	salons    *SalonService
	maxMonths int
	now       func() time.Time
}

func NewBookingService(repo *repository.BookingRepository, salons *SalonService, maxMonths int) *BookingService {
	if maxMonths <= 0 {
		maxMonths = 3
	}
	return &BookingService{repo: repo, salons: salons, maxMonths: maxMonths, now: time.Now}
}

type BookingInput struct {
	SalonID   string `json:"salonId"`
	ServiceID string `json:"serviceId"`
	Stylist   string `json:"stylist"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

func (s *BookingService) Create(ctx context.Context, email string, in BookingInput) (*models.Booking, error) {
	salon, ok := s.salons.Get(in.SalonID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown salon %q", ErrBookingInvalid, in.SalonID)
	}
	svc, ok := s.salons.FindService(salon, in.ServiceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown service %q", ErrBookingInvalid, in.ServiceID)
	}
	if in.Stylist != "" && !slices.Contains(salon.Stylists, in.Stylist) {
		return nil, fmt.Errorf("%w: stylist %q does not work at %s", ErrBookingInvalid, in.Stylist, salon.Title)
	}
	if !slices.Contains(TimeSlots, in.Time) {
		return nil, fmt.Errorf("%w: unavailable time slot %q", ErrBookingInvalid, in.Time)
	}
	if err := s.validateDate(in.Date); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:           uuid.NewString(),
		AccountEmail: email,
		SalonID:      salon.ID,
		SalonName:    salon.Title,
		Service:      svc.Name,
		Stylist:      in.Stylist,
		Date:         in.Date,
		Time:         in.Time,
		Price:        svc.Price,
		Status:       models.BookingConfirmed,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// validateDate accepts today through maxMonths ahead, in the server's local calendar.
func (s *BookingService) validateDate(raw string) error {
	now := s.now()
	day, err := time.ParseInLocation(dateLayout, raw, now.Location())
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBookingInvalid)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		return fmt.Errorf("%w: date is in the past", ErrBookingInvalid)
	}
	if day.After(today.AddDate(0, s.maxMonths, 0)) {
		return fmt.Errorf("%w: date is more than %d months ahead", ErrBookingInvalid, s.maxMonths)
	}
	return nil
}

func (s *BookingService) List(ctx context.Context, email string) ([]models.Booking, error) {
	return s.repo.ListByAccount(ctx, email)
}

func (s *BookingService) Cancel(ctx context.Context, email, id string) (*models.Booking, error) {
	booking, err := s.repo.Get(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	changed, err := s.repo.SetStatus(ctx, email, id, models.BookingConfirmed, models.BookingCancelled)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: booking is %s", ErrBookingInvalid, booking.Status)
	}
	booking.Status = models.BookingCancelled
	return booking, nil
}

// CompletePast marks confirmed bookings dated before today as completed.
func (s *BookingService) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.CompleteBefore(ctx, now.Format(dateLayout))
}

type Dashboard struct {
	Salon    models.Salon          `json:"salon"`
	Stats    repository.SalonStats `json:"stats"`
	Bookings []models.Booking      `json:"bookings"`
	WalkIns  []models.WalkInCode   `json:"walkInCodes,omitempty"`
}

// Dashboard summarizes a partner salon's bookings.
func (s *BookingService) Dashboard(ctx context.Context, salonID string) (*Dashboard, error) {
	salon, ok := s.salons.Get(salonID)
	if !ok {
		return nil, ErrInvalidSalonCode
	}
	stats, err := s.repo.StatsBySalon(ctx, salon.ID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.ListBySalon(ctx, salon.ID, 20)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Salon: salon, Stats: stats, Bookings: recent}, nil
}
