// Package auth реализует регистрацию, вход и проверку JWT токенов.
// Новый аккаунт получает базовый тариф free и двухнедельный пробный
// период на тарифе business.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadpilot/leadpilot/internal/lib/jwt"
	"github.com/leadpilot/leadpilot/internal/lib/password"
	"github.com/leadpilot/leadpilot/internal/models"
)

// TrialDuration длительность пробного периода для новых аккаунтов.
const TrialDuration = 14 * 24 * time.Hour

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AccountRepository определяет операции с хранилищем аккаунтов.
type AccountRepository interface {
	RegisterAccount(ctx context.Context, account models.Account) (string, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
}

// Service обслуживает аутентификацию.
type Service struct {
	repo  AccountRepository
	maker jwt.Maker
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, maker jwt.Maker, log *slog.Logger) *Service {
	return &Service{repo: repo, maker: maker, log: log, now: time.Now}
}

// Register создает новый аккаунт и возвращает его UID.
func (s *Service) Register(ctx context.Context, dto models.DummyRegister) (string, error) {
	const op = "auth.Register"

	hash, err := password.GetHash(dto.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	trialStart := s.now().UTC()
	trialEnd := trialStart.Add(TrialDuration)
	account := models.Account{
		Email:        dto.Email,
		Username:     dto.Username,
		PasswordHash: hash,
		Role:         "user",
		Plan:         models.PlanFree,
		TrialPlan:    models.PlanBusiness,
		TrialStart:   &trialStart,
		TrialEnd:     &trialEnd,
	}

	uid, err := s.repo.RegisterAccount(ctx, account)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("account registered",
		slog.String("account_uid", uid),
		slog.String("username", dto.Username))
	return uid, nil
}

// Login проверяет пару логин/пароль и возвращает подписанный JWT токен.
func (s *Service) Login(ctx context.Context, dto models.DummyLogin) (string, error) {
	const op = "auth.Login"

	account, err := s.repo.GetAccountByUsername(ctx, dto.Username)
	if err != nil {
		// не раскрываем, существует ли такой аккаунт
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(account.PasswordHash, dto.Password); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.maker.GenerateToken(account.Username, account.Role, account.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ValidateToken проверяет токен и возвращает его claims.
func (s *Service) ValidateToken(tokenStr string) (*jwt.CustomClaims, error) {
	return s.maker.ParseToken(tokenStr)
}
