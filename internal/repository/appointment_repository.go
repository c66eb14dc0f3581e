package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutoring-api/internal/model"
	"tutoring-api/internal/repository/base"
)

type AppointmentRepository struct {
	db base.Querier
}

func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{db: pool}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *AppointmentRepository) WithTx(tx pgx.Tx) *AppointmentRepository {
	return &AppointmentRepository{db: tx}
}

// Create inserts a new appointment and fills in the generated id.
func (r *AppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (student_id, teacher_id, student_name, student_email,
			appointment_date, start_time, end_time, hours, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		appt.StudentID,
		appt.TeacherID,
		appt.StudentName,
		appt.StudentEmail,
		appt.Date,
		appt.StartTime,
		appt.EndTime,
		appt.Hours,
		appt.Total,
	).Scan(&appt.ID, &appt.CreatedAt)

	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	return nil
}

// GetByIDForUpdate loads an appointment with a row lock, so a concurrent
// cancellation of the same record waits for the open transaction. Returns
// nil when no record exists.
func (r *AppointmentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT id, student_id, teacher_id, student_name, student_email,
			appointment_date, start_time, end_time, hours, total, created_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`

	return r.scanOne(ctx, query, id)
}

// ListByStudent returns a student's appointments in creation order.
func (r *AppointmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Appointment, error) {
	query := `
		SELECT id, student_id, teacher_id, student_name, student_email,
			appointment_date, start_time, end_time, hours, total, created_at
		FROM appointments
		WHERE student_id = $1
		ORDER BY id ASC
	`

	return r.scanMany(ctx, query, studentID)
}

// ListByTeacher returns a teacher's appointments in creation order.
func (r *AppointmentRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Appointment, error) {
	query := `
		SELECT id, student_id, teacher_id, student_name, student_email,
			appointment_date, start_time, end_time, hours, total, created_at
		FROM appointments
		WHERE teacher_id = $1
		ORDER BY id ASC
	`

	return r.scanMany(ctx, query, teacherID)
}

// Delete removes an appointment permanently.
func (r *AppointmentRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM appointments WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete appointment: %w", pgx.ErrNoRows)
	}

	return nil
}

func (r *AppointmentRepository) scanOne(ctx context.Context, query string, args ...any) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&appt.ID,
		&appt.StudentID,
		&appt.TeacherID,
		&appt.StudentName,
		&appt.StudentEmail,
		&appt.Date,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Hours,
		&appt.Total,
		&appt.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	return &appt, nil
}

func (r *AppointmentRepository) scanMany(ctx context.Context, query string, args ...any) ([]*model.Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		var appt model.Appointment
		err := rows.Scan(
			&appt.ID,
			&appt.StudentID,
			&appt.TeacherID,
			&appt.StudentName,
			&appt.StudentEmail,
			&appt.Date,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Hours,
			&appt.Total,
			&appt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, &appt)
	}

	return appts, rows.Err()
}
