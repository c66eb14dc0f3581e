package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tutoring-api/internal/auth"
	"tutoring-api/internal/config"
	"tutoring-api/internal/model"
	"tutoring-api/internal/pricing"
	"tutoring-api/internal/service"
)

type Server struct {
	cfg      *config.Config
	bookings *service.BookingService
	accounts *service.AuthService
	redis    *redis.Client
	limiter  *rateLimiter
	logger   *zap.Logger
}

func NewServer(cfg *config.Config, bookings *service.BookingService, accounts *service.AuthService, redisClient *redis.Client, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		bookings: bookings,
		accounts: accounts,
		redis:    redisClient,
		limiter:  newRateLimiter(cfg.AuthRateRPS, cfg.AuthRateBurst),
		logger:   logger,
	}
}

// Close releases the server's background resources.
func (s *Server) Close() {
	s.limiter.Close()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.rateLimitMiddleware).Post("/auth/register", s.handleRegisterStudent)
	r.With(s.rateLimitMiddleware).Post("/auth/register-teacher", s.handleRegisterTeacher)
	r.With(s.rateLimitMiddleware).Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)

	r.With(s.authMiddleware).Get("/teachers", s.handleListTeachers)
	r.With(s.authMiddleware).Get("/rate", s.handleGetRate)
	r.With(s.authMiddleware).Put("/rate", s.handleUpdateRate)

	r.With(s.authMiddleware).Post("/appointments", s.handleCreateAppointment)
	r.With(s.authMiddleware).Get("/appointments", s.handleListAppointments)
	r.With(s.authMiddleware).Delete("/appointments/{appointmentID}", s.handleCancelAppointment)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(token, s.cfg.JWTSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		if s.isRevoked(r.Context(), claims.ID) {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		s.logger.Warn("revocation check failed", zap.Error(err))
		return false
	}
	return n > 0
}

func revocationKey(jti string) string {
	return "revoked:" + jti
}

// Request/response shapes

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	TeacherCode string `json:"teacher_code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type updateRateRequest struct {
	HourlyRate float64 `json:"hourly_rate"`
}

type createAppointmentRequest struct {
	TeacherID    int64  `json:"teacher_id"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// Handlers

func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if code := validateRegistration(req); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	user, err := s.accounts.RegisterStudent(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleRegisterTeacher(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if code := validateRegistration(req); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	user, err := s.accounts.RegisterTeacher(r.Context(), req.Name, req.Email, req.Password, req.TeacherCode)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	token, user, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// handleLogout revokes the presented token for its remaining lifetime. With
// no Redis configured tokens simply age out at their expiry.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if s.redis != nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl > 0 {
			if err := s.redis.Set(r.Context(), revocationKey(claims.ID), "1", ttl).Err(); err != nil {
				s.logger.Error("token revocation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "server_error")
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := s.bookings.ListTeachers(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if teachers == nil {
		teachers = []*model.User{}
	}
	writeJSON(w, http.StatusOK, teachers)
}

func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.bookings.CurrentRate(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (s *Server) handleUpdateRate(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req updateRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.bookings.UpdateRate(r.Context(), claims.Actor(), req.HourlyRate); err != nil {
		s.writeServiceError(w, err)
		return
	}
	rate, err := s.bookings.CurrentRate(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.TeacherID == 0 || req.StudentName == "" || req.StudentEmail == "" ||
		req.Date == "" || req.StartTime == "" || req.EndTime == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	appt, err := s.bookings.Create(r.Context(), claims.Actor(), service.BookingInput{
		TeacherID:    req.TeacherID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	bookingsCreated.Inc()
	writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	appts, err := s.bookings.ListFor(r.Context(), claims.Actor())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if appts == nil {
		appts = []*model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "appointmentID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.bookings.Cancel(r.Context(), claims.Actor(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	bookingsCancelled.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Helpers

func validateRegistration(req registerRequest) string {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return "missing_fields"
	}
	if len(req.Password) < 8 {
		return "password_too_short"
	}
	return ""
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidTimeFormat):
		writeError(w, http.StatusBadRequest, "invalid_time_format")
	case errors.Is(err, pricing.ErrNonPositiveDuration):
		writeError(w, http.StatusBadRequest, "non_positive_duration")
	case errors.Is(err, pricing.ErrInvalidRate):
		writeError(w, http.StatusBadRequest, "invalid_rate")
	case errors.Is(err, service.ErrUnknownTeacher):
		writeError(w, http.StatusNotFound, "unknown_teacher")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, service.ErrInvalidTeacherCode):
		writeError(w, http.StatusForbidden, "invalid_teacher_code")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
