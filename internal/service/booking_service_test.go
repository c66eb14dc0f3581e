package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tutoring-api/internal/app"
	"tutoring-api/internal/model"
	"tutoring-api/internal/pricing"
	"tutoring-api/internal/repository"
	"tutoring-api/internal/repository/base"
	"tutoring-api/internal/service"
)

type fixture struct {
	bookings *service.BookingService
	accounts *service.AuthService
	appts    *repository.AppointmentRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := zap.NewNop()
	migrator, err := app.NewMigrator(pool, "../../migrations", logger)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if err := migrator.Run(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	_ = migrator.Close()

	userRepo := repository.NewUserRepository(pool)
	apptRepo := repository.NewAppointmentRepository(pool)
	rateRepo := repository.NewRateRepository(pool)

	return &fixture{
		bookings: service.NewBookingService(pool, userRepo, apptRepo, rateRepo, logger),
		accounts: service.NewAuthService(userRepo, logger, "test-secret", 15*time.Minute, "test-code"),
		appts:    apptRepo,
	}
}

func registerActor(t *testing.T, f *fixture, role model.Role) model.Actor {
	t.Helper()
	email := fmt.Sprintf("%s-%d@test.local", role, time.Now().UnixNano())
	var user *model.User
	var err error
	if role == model.RoleTeacher {
		user, err = f.accounts.RegisterTeacher(context.Background(), "Test Teacher", email, "testpass123", "test-code")
	} else {
		user, err = f.accounts.RegisterStudent(context.Background(), "Test Student", email, "testpass123")
	}
	if err != nil {
		t.Fatalf("register %s: %v", role, err)
	}
	return model.Actor{ID: user.ID, Role: user.Role}
}

func bookingInput(teacherID int64, start, end string) service.BookingInput {
	return service.BookingInput{
		TeacherID:    teacherID,
		StudentName:  "Maria Silva",
		StudentEmail: "maria@test.local",
		Date:         "2026-09-15",
		StartTime:    start,
		EndTime:      end,
	}
}

func TestCreateAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)

	if err := f.bookings.UpdateRate(ctx, teacher, 50.0); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	appt, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "09:00", "10:30"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if appt.ID == 0 {
		t.Fatal("expected an id")
	}
	if appt.Hours != 1.5 {
		t.Fatalf("expected 1.5 hours, got %v", appt.Hours)
	}
	if math.Abs(appt.Total-75.0) > 1e-9 {
		t.Fatalf("expected total 75, got %v", appt.Total)
	}
	if appt.StudentID == nil || *appt.StudentID != student.ID {
		t.Fatalf("expected student id %d, got %v", student.ID, appt.StudentID)
	}
	if appt.StudentName != "Maria Silva" || appt.StudentEmail != "maria@test.local" {
		t.Fatal("expected contact snapshot to be stored as given")
	}
}

func TestCreateAppointmentAuthorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)

	// teachers cannot book lessons
	if _, err := f.bookings.Create(ctx, teacher, bookingInput(teacher.ID, "09:00", "10:00")); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// the referenced teacher must exist and be a teacher
	if _, err := f.bookings.Create(ctx, student, bookingInput(-1, "09:00", "10:00")); !errors.Is(err, service.ErrUnknownTeacher) {
		t.Fatalf("expected ErrUnknownTeacher for missing id, got %v", err)
	}
	other := registerActor(t, f, model.RoleStudent)
	if _, err := f.bookings.Create(ctx, student, bookingInput(other.ID, "09:00", "10:00")); !errors.Is(err, service.ErrUnknownTeacher) {
		t.Fatalf("expected ErrUnknownTeacher for student id, got %v", err)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)

	if _, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "14:00", "14:00")); !errors.Is(err, pricing.ErrNonPositiveDuration) {
		t.Fatalf("expected ErrNonPositiveDuration, got %v", err)
	}
	if _, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "9h00", "10:00")); !errors.Is(err, pricing.ErrInvalidTimeFormat) {
		t.Fatalf("expected ErrInvalidTimeFormat, got %v", err)
	}
}

func TestRateChangeIsNotRetroactive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)

	if err := f.bookings.UpdateRate(ctx, teacher, 50.0); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	first, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "09:00", "10:30"))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}

	if err := f.bookings.UpdateRate(ctx, teacher, 60.0); err != nil {
		t.Fatalf("update rate: %v", err)
	}
	second, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if math.Abs(second.Total-60.0) > 1e-9 {
		t.Fatalf("expected new booking at 60, got %v", second.Total)
	}

	// the earlier booking keeps the price frozen at booking time
	appts, err := f.bookings.ListFor(ctx, student)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, appt := range appts {
		if appt.ID == first.ID && math.Abs(appt.Total-75.0) > 1e-9 {
			t.Fatalf("expected frozen total 75, got %v", appt.Total)
		}
	}
}

func TestUpdateRateAuthorizationAndValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)

	if err := f.bookings.UpdateRate(ctx, student, 70.0); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.bookings.UpdateRate(ctx, teacher, 0); !errors.Is(err, pricing.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for zero, got %v", err)
	}
	if err := f.bookings.UpdateRate(ctx, teacher, -5); !errors.Is(err, pricing.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for negative, got %v", err)
	}
}

func TestListForScopedToActor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	other := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)

	appt, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "09:00", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := f.bookings.ListFor(ctx, student)
	if err != nil {
		t.Fatalf("list student: %v", err)
	}
	if !containsAppointment(mine, appt.ID) {
		t.Fatal("expected booking in student's list")
	}

	theirs, err := f.bookings.ListFor(ctx, other)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if containsAppointment(theirs, appt.ID) {
		t.Fatal("expected booking hidden from other students")
	}

	assigned, err := f.bookings.ListFor(ctx, teacher)
	if err != nil {
		t.Fatalf("list teacher: %v", err)
	}
	if !containsAppointment(assigned, appt.ID) {
		t.Fatal("expected booking in teacher's list")
	}
}

func TestCancelAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := registerActor(t, f, model.RoleStudent)
	intruder := registerActor(t, f, model.RoleStudent)
	teacher := registerActor(t, f, model.RoleTeacher)
	otherTeacher := registerActor(t, f, model.RoleTeacher)

	appt, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "09:00", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// another student may not cancel it
	if err := f.bookings.Cancel(ctx, intruder, appt.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for intruder, got %v", err)
	}
	// a different teacher may not cancel it either
	if err := f.bookings.Cancel(ctx, otherTeacher, appt.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other teacher, got %v", err)
	}

	// the booking student cancels it
	if err := f.bookings.Cancel(ctx, student, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	appts, err := f.bookings.ListFor(ctx, student)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if containsAppointment(appts, appt.ID) {
		t.Fatal("expected cancelled booking to disappear")
	}

	// the second cancellation finds nothing
	if err := f.bookings.Cancel(ctx, student, appt.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
	}

	// the assigned teacher can cancel their own
	appt2, err := f.bookings.Create(ctx, student, bookingInput(teacher.ID, "11:00", "12:00"))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := f.bookings.Cancel(ctx, teacher, appt2.ID); err != nil {
		t.Fatalf("teacher cancel: %v", err)
	}
}

func TestDeleteMissingAppointmentSignalsNotFound(t *testing.T) {
	f := setup(t)

	err := f.appts.Delete(context.Background(), -1)
	if err == nil || !base.IsNotFound(err) {
		t.Fatalf("expected a not-found delete error, got %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	email := fmt.Sprintf("login-%d@test.local", time.Now().UnixNano())
	user, err := f.accounts.RegisterStudent(ctx, "Login User", email, "testpass123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.accounts.RegisterStudent(ctx, "Dup", email, "testpass123"); !errors.Is(err, service.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := f.accounts.RegisterTeacher(ctx, "T", "t-"+email, "testpass123", "wrong-code"); !errors.Is(err, service.ErrInvalidTeacherCode) {
		t.Fatalf("expected ErrInvalidTeacherCode, got %v", err)
	}

	token, logged, err := f.accounts.Login(ctx, email, "testpass123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || logged.ID != user.ID {
		t.Fatal("expected token for the registered user")
	}

	if _, _, err := f.accounts.Login(ctx, email, "wrong-password"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := f.accounts.Login(ctx, "nobody@test.local", "testpass123"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func containsAppointment(appts []*model.Appointment, id int64) bool {
	for _, appt := range appts {
		if appt.ID == id {
			return true
		}
	}
	return false
}
