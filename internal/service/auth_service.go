package service

import (
	"context"
	"crypto/subtle"
	"time"

	"go.uber.org/zap"

	"tutoring-api/internal/auth"
	"tutoring-api/internal/model"
	"tutoring-api/internal/repository"
)

// AuthService registers accounts and exchanges credentials for access
// tokens. Everything past this boundary only sees (id, role) actors.
type AuthService struct {
	userRepo    *repository.UserRepository
	logger      *zap.Logger
	jwtSecret   string
	tokenTTL    time.Duration
	teacherCode string
}

func NewAuthService(userRepo *repository.UserRepository, logger *zap.Logger, jwtSecret string, tokenTTL time.Duration, teacherCode string) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		logger:      logger,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		teacherCode: teacherCode,
	}
}

// RegisterStudent creates a student account.
func (s *AuthService) RegisterStudent(ctx context.Context, name, email, password string) (*model.User, error) {
	return s.register(ctx, name, email, password, model.RoleStudent)
}

// RegisterTeacher creates a teacher account, gated by the configured access
// code.
func (s *AuthService) RegisterTeacher(ctx context.Context, name, email, password, code string) (*model.User, error) {
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.teacherCode)) != 1 {
		return nil, ErrInvalidTeacherCode
	}
	return s.register(ctx, name, email, password, model.RoleTeacher)
}

func (s *AuthService) register(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.MakeToken(user, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))

	return token, user, nil
}
