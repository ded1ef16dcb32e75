package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"classline/config"
	"classline/internal/domain/user"
	"classline/internal/repository"
	classline_errors "classline/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int64    `json:"expires_in"`
	User        UserInfo `json:"user"`
}

type UserInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

type AccessClaims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || len(in.Password) < 8 || in.DisplayName == "" {
		return AuthResponse{}, classline_errors.ErrInvalidInput
	}
	if in.Role == "" {
		in.Role = user.RoleStudent
	}
	if in.Role != user.RoleStudent && in.Role != user.RoleTeacher {
		return AuthResponse{}, classline_errors.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	newUser := &user.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
		Role:         in.Role,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, classline_errors.ErrAlreadyExists) {
			return AuthResponse{}, classline_errors.ErrConflict
		}
		return AuthResponse{}, err
	}

	return s.issueToken(*newUser)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	u, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, classline_errors.ErrNotFound) {
			return AuthResponse{}, classline_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return AuthResponse{}, classline_errors.ErrUnauthorized
	}
	return s.issueToken(u)
}

func (s *AuthService) issueToken(u user.User) (AuthResponse, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: strconv.FormatInt(u.ID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		User: UserInfo{
			ID:          strconv.FormatInt(u.ID, 10),
			DisplayName: u.DisplayName,
			Email:       u.Email,
			Role:        u.Role,
		},
	}, nil
}

// ParseAccessToken validates a bearer token and returns its claims.
func (s *AuthService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, classline_errors.ErrUnauthorized
	}
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, classline_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, classline_errors.ErrUnauthorized
	}
	return claims, nil
}

// UserIDFromToken is a convenience for the websocket handshake.
func (s *AuthService) UserIDFromToken(tokenString string) (int64, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return 0, classline_errors.ErrUnauthorized
	}
	return id, nil
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (user.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
