package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

const bcryptCost = 12

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Claims struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

type AuthService interface {
	RegisterUser(ctx context.Context, in RegisterInput) (*types.User, string, error)
	LoginUser(ctx context.Context, email, password string) (*types.User, string, error)
	CreateToken(user *types.User) (string, error)
	VerifyToken(tokenString string) (*Claims, error)
	TokenTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey []byte
	tokenTTL     time.Duration
}

func NewAuthService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string, tokenTTL time.Duration) AuthService {
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: []byte(jwtSecretKey),
		tokenTTL:     tokenTTL,
	}
}

func (as *authService) RegisterUser(ctx context.Context, in RegisterInput) (*types.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if username == "" || email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, "", apierr.Validation("username, email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, "", apierr.Validation("invalid email address")
	}
	if in.Password != in.ConfirmPassword {
		return nil, "", apierr.Validation("passwords do not match")
	}
	if err := validatePasswordStrength(in.Password); err != nil {
		return nil, "", apierr.Validation("%s", err.Error())
	}

	if _, err := as.userRepo.GetByEmail(ctx, nil, email); err == nil {
		return nil, "", apierr.Conflict("email already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apierr.Persistence(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         types.RoleTeacher,
		IsActive:     true,
	}
	if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, cErr := as.userRepo.Create(ctx, tx, user)
		return cErr
	}); err != nil {
		return nil, "", apierr.Persistence(err)
	}

	token, err := as.CreateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (*types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", apierr.Validation("email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, "", apierr.Validation("invalid email address")
	}

	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apierr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, "", apierr.Persistence(err)
	}
	if !user.IsActive {
		return nil, "", apierr.Unauthorized("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", apierr.Unauthorized("invalid email or password")
	}

	token, err := as.CreateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) CreateToken(user *types.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(as.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return as.jwtSecretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, apierr.Unauthorized("invalid or expired token")
	}
	return claims, nil
}

func (as *authService) TokenTTL() time.Duration {
	return as.tokenTTL
}

func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain an uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain a lowercase letter")
	}
	if !hasDigit {
		return errors.New("password must contain a digit")
	}
	return nil
}
