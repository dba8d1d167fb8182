package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pathakanu/memorymate/internal/model"
	"github.com/pathakanu/memorymate/internal/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailTaken is returned by SignUp for an already registered email.
	ErrEmailTaken = errors.New("user already registered")
	// ErrMissingCredentials is returned when email or password is blank.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrInvalidToken is returned when an access token cannot be verified.
	ErrInvalidToken = errors.New("invalid access token")
)

// ProfileWriter stores the display name chosen at registration.
type ProfileWriter interface {
	Upsert(ctx context.Context, profile model.Profile) error
}

// Claims are carried by every access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs users in and out and publishes the result to the session store.
type Service struct {
	db       *gorm.DB
	profiles ProfileWriter
	sessions *session.Store
	secret   []byte
	ttl      time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// New creates the auth service. Tokens are signed with secret and expire after ttl.
func New(db *gorm.DB, profiles ProfileWriter, sessions *session.Store, secret string, ttl time.Duration, logger *log.Logger) *Service {
	return &Service{
		db:       db,
		profiles: profiles,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// SignUp registers a new user, records the username on the profile and signs in.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*session.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := model.User{Email: email, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.profiles.Upsert(ctx, model.Profile{ID: user.ID, Username: strings.TrimSpace(username)}); err != nil {
		// the account exists; a missing profile only affects the display name
		s.logger.Printf("auth: profile for %s: %v", user.ID, err)
	}

	return s.startSession(user)
}

// SignInWithPassword verifies the credentials and replaces the active session.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(user)
}

// SignOut clears the active session.
func (s *Service) SignOut() {
	s.sessions.Clear()
}

// GetSession returns the active session or nil.
func (s *Service) GetSession() *session.Session {
	return s.sessions.Current()
}

// ParseToken verifies an access token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) startSession(user model.User) (*session.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	sess := &session.Session{
		UserID:      user.ID,
		Email:       user.Email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}
	s.sessions.Set(session.EventSignedIn, sess)
	s.logger.Printf("auth: signed in %s", user.Email)
	return sess, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
