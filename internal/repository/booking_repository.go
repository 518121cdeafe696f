package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/prelook/internal/models"
)

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, account_email, salon_id, salon_name, service, stylist, booking_date, booking_time, price, status, created_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	var status string
	var created int64
	if err := row.Scan(&b.ID, &b.AccountEmail, &b.SalonID, &b.SalonName, &b.Service, &b.Stylist, &b.Date, &b.Time, &b.Price, &status, &created); err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	b.CreatedAt = fromMillis(created)
	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	const query = `
INSERT INTO bookings (id, account_email, salon_id, salon_name, service, stylist, booking_date, booking_time, price, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, b.ID, b.AccountEmail, b.SalonID, b.SalonName, b.Service, b.Stylist, b.Date, b.Time, b.Price, b.Status, millis(b.CreatedAt)); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, email, id string) (*models.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE account_email = ? AND id = ?`, email, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) listWhere(ctx context.Context, where string, limit int, args ...any) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListByAccount returns the account's bookings, newest first.
func (r *BookingRepository) ListByAccount(ctx context.Context, email string) ([]models.Booking, error) {
	return r.listWhere(ctx, `account_email = ?`, 0, email)
}

func (r *BookingRepository) ListBySalon(ctx context.Context, salonID string, limit int) ([]models.Booking, error) {
	return r.listWhere(ctx, `salon_id = ?`, limit, salonID)
}

// SetStatus changes status only when the booking is currently in from.
func (r *BookingRepository) SetStatus(ctx context.Context, email, id string, from, to models.BookingStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE account_email = ? AND id = ? AND status = ?`, to, email, id, from)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("booking rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteBefore marks confirmed bookings dated before day (YYYY-MM-DD) as completed.
func (r *BookingRepository) CompleteBefore(ctx context.Context, day string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE status = ? AND booking_date < ?`, models.BookingCompleted, models.BookingConfirmed, day)
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	return res.RowsAffected()
}

type SalonStats struct {
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Revenue   int `json:"revenue"`
}

func (r *BookingRepository) StatsBySalon(ctx context.Context, salonID string) (SalonStats, error) {
	const query = `SELECT status, COUNT(*), COALESCE(SUM(price), 0) FROM bookings WHERE salon_id = ? GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, salonID)
	if err != nil {
		return SalonStats{}, fmt.Errorf("salon stats: %w", err)
	}
	defer rows.Close()

	var stats SalonStats
	for rows.Next() {
		var status string
		var count, sum int
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return SalonStats{}, fmt.Errorf("scan salon stats: %w", err)
		}
		switch models.BookingStatus(status) {
		case models.BookingConfirmed:
			stats.Confirmed = count
			stats.Revenue += sum
		case models.BookingCompleted:
			stats.Completed = count
			stats.Revenue += sum
		case models.BookingCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}
