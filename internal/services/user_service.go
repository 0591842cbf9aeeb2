package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"score_tracker/internal/models"
	"score_tracker/internal/repository"
)

const minPasswordLength = 6

type TokenResult struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   string       `json:"expires_at"`
	User        *models.User `json:"user"`
}

type UserService interface {
	Register(ctx context.Context, username, password string, isAdmin bool) (*models.User, error)
	Login(ctx context.Context, username, password string) (*TokenResult, error)
	// ParseToken validates a bearer token and returns the user id it names.
	ParseToken(token string) (uint, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

func NewUserService(userRepo repository.UserRepository, secret string, tokenTTL time.Duration) UserService {
	return &userService{userRepo: userRepo, secret: []byte(secret), tokenTTL: tokenTTL}
}

func (s *userService) Register(ctx context.Context, username, password string, isAdmin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username %s: %w", username, ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsAdmin:      isAdmin,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*TokenResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["user_id"] = user.ID
	claims["username"] = user.Username
	claims["exp"] = expiresAt.Unix()
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &TokenResult{
		AccessToken: signed,
		ExpiresAt:   formatTime(expiresAt),
		User:        user,
	}, nil
}

func (s *userService) ParseToken(raw string) (uint, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrUnauthorized
	}
	// JSON numbers decode as float64.
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, ErrUnauthorized
	}
	return uint(id), nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}
