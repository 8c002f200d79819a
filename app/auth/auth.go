// Package auth issues and verifies the teacher account tokens. The polling
// core never touches it; only the HTTP surface does.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"marcel.works/classpoll-go/app/model"
	"marcel.works/classpoll-go/app/store"
)

var (
	ErrEmailTaken         = errors.New("account already exists for this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
}

func NewService(st store.Store, secret string, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log,
	}
}

// SignUp creates an account with a bcrypt-hashed password. Emails are unique.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*model.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidCredentials)
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := model.User{
		ID:       uuid.NewString(),
		Name:     name,
		Email:    email,
		Password: string(hashed),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("email", email))
	return &user, nil
}

// SignIn checks credentials and returns a signed token plus the account.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// Verify parses a token and returns the user id it was issued for.
func (s *Service) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
