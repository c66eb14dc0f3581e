package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tutoring-api/internal/model"
	"tutoring-api/internal/pricing"
	"tutoring-api/internal/repository"
	"tutoring-api/internal/repository/base"
)

// BookingService owns the appointment ledger: it prices and creates
// bookings, scopes listings to the requesting actor and authorizes
// cancellations.
type BookingService struct {
	pool     *pgxpool.Pool
	userRepo *repository.UserRepository
	apptRepo *repository.AppointmentRepository
	rateRepo *repository.RateRepository
	logger   *zap.Logger
}

func NewBookingService(
	pool *pgxpool.Pool,
	userRepo *repository.UserRepository,
	apptRepo *repository.AppointmentRepository,
	rateRepo *repository.RateRepository,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		pool:     pool,
		userRepo: userRepo,
		apptRepo: apptRepo,
		rateRepo: rateRepo,
		logger:   logger,
	}
}

// BookingInput is a student's booking request. Name and email are stored as
// given, as a contact snapshot independent of the student's user record.
type BookingInput struct {
	TeacherID    int64
	StudentName  string
	StudentEmail string
	Date         string
	StartTime    string
	EndTime      string
}

// Create books a lesson for a student actor. The teacher check, the rate
// read and the insert run in one transaction; the rate row is read under a
// share lock so a concurrent rate update cannot slip in between pricing and
// persisting.
func (s *BookingService) Create(ctx context.Context, actor model.Actor, in BookingInput) (*model.Appointment, error) {
	if actor.Role != model.RoleStudent {
		return nil, ErrForbidden
	}

	var appt *model.Appointment
	err := base.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		teacher, err := s.userRepo.WithTx(tx).GetByID(ctx, in.TeacherID)
		if err != nil {
			return fmt.Errorf("get teacher: %w", err)
		}
		if teacher == nil || teacher.Role != model.RoleTeacher {
			return ErrUnknownTeacher
		}

		rate, err := s.rateRepo.WithTx(tx).GetForShare(ctx)
		if err != nil {
			return fmt.Errorf("get rate: %w", err)
		}

		quote, err := pricing.ComputeBooking(in.StartTime, in.EndTime, rate.HourlyRate)
		if err != nil {
			return err
		}

		studentID := actor.ID
		appt = &model.Appointment{
			StudentID:    &studentID,
			TeacherID:    in.TeacherID,
			StudentName:  in.StudentName,
			StudentEmail: in.StudentEmail,
			Date:         in.Date,
			StartTime:    in.StartTime,
			EndTime:      in.EndTime,
			Hours:        quote.Hours,
			Total:        quote.Total,
		}
		return s.apptRepo.WithTx(tx).Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("student_id", actor.ID),
		zap.Int64("teacher_id", appt.TeacherID),
		zap.Float64("hours", appt.Hours),
		zap.Float64("total", appt.Total))

	return appt, nil
}

// ListFor returns the actor's own appointments: the ones they booked for a
// student, the ones assigned to them for a teacher.
func (s *BookingService) ListFor(ctx context.Context, actor model.Actor) ([]*model.Appointment, error) {
	switch actor.Role {
	case model.RoleStudent:
		return s.apptRepo.ListByStudent(ctx, actor.ID)
	case model.RoleTeacher:
		return s.apptRepo.ListByTeacher(ctx, actor.ID)
	default:
		return nil, ErrForbidden
	}
}

// Cancel removes an appointment permanently. Students may only cancel
// appointments they booked, teachers only appointments assigned to them.
// The ownership check and the delete run in one transaction over a locked
// row, so a cancelled record is never half-visible.
func (s *BookingService) Cancel(ctx context.Context, actor model.Actor, id int64) error {
	err := base.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		appt, err := s.apptRepo.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("get appointment: %w", err)
		}
		if appt == nil {
			return ErrNotFound
		}

		switch actor.Role {
		case model.RoleStudent:
			if appt.StudentID == nil || *appt.StudentID != actor.ID {
				return ErrForbidden
			}
		case model.RoleTeacher:
			if appt.TeacherID != actor.ID {
				return ErrForbidden
			}
		default:
			return ErrForbidden
		}

		if err := s.apptRepo.WithTx(tx).Delete(ctx, id); err != nil {
			if base.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("appointment cancelled",
		zap.Int64("appointment_id", id),
		zap.Int64("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)))

	return nil
}

// CurrentRate returns the hourly rate new bookings would be priced at.
func (s *BookingService) CurrentRate(ctx context.Context) (*model.RateConfig, error) {
	return s.rateRepo.Get(ctx)
}

// UpdateRate sets the shared hourly rate. Teacher actors only; the change
// applies to subsequent bookings, never retroactively.
func (s *BookingService) UpdateRate(ctx context.Context, actor model.Actor, rate float64) error {
	if actor.Role != model.RoleTeacher {
		return ErrForbidden
	}
	if err := pricing.ValidateRate(rate); err != nil {
		return err
	}

	if err := s.rateRepo.Set(ctx, rate); err != nil {
		return err
	}

	s.logger.Info("hourly rate updated",
		zap.Float64("hourly_rate", rate),
		zap.Int64("teacher_id", actor.ID))

	return nil
}

// ListTeachers returns the teachers a student can book.
func (s *BookingService) ListTeachers(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListTeachers(ctx)
}
