// Package otp issues and verifies the one-time codes that prove a customer owns their email address.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/consultation-booking/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

// Verification failures, worded for display in the booking form
var (
	ErrNotFound = errors.New("OTP not found or expired")
	ErrExpired  = errors.New("OTP expired")
	ErrInvalid  = errors.New("Invalid OTP")

	ErrTooManyAttempts = errors.New("Too many failed attempts, please request a new OTP")
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// Record is a pending code. Only the bcrypt hash of the code is kept.
type Record struct {
	Email     string    `json:"email"`
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts,omitempty"`
}

// Store keeps at most one pending code per email
type Store interface {
	Save(ctx context.Context, record Record, ttl time.Duration) error
	// Get returns ErrNotFound when no code is pending
	Get(ctx context.Context, email string) (*Record, error)
	Delete(ctx context.Context, email string) error
}

// Mailer delivers a code to its owner
type Mailer interface {
	SendOTP(ctx context.Context, address, code string, expiry time.Duration) error
}

type Service struct {
	store  Store
	mailer Mailer
	expiry time.Duration
	// maxAttempts failed verifications discard the code; zero means unlimited
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
	generate    func() (string, error)
}

func NewService(store Store, mailer Mailer, expiry time.Duration, maxAttempts int, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		mailer:      mailer,
		expiry:      expiry,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "otp"),
		now:         time.Now,
		generate:    generateCode,
	}
}

// Send issues a new code for email, replacing any pending one, and mails it
func (s *Service) Send(ctx context.Context, email string) error {
	key := normalize(email)

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	record := Record{Email: key, Hash: string(hash), ExpiresAt: s.now().Add(s.expiry)}
	if err := s.store.Save(ctx, record, s.expiry); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, email, code, s.expiry); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to discard undelivered code", "email", logger.MaskEmail(key), "error", delErr)
		}
		return fmt.Errorf("failed to send code: %w", err)
	}

	s.logger.Info("Verification code sent", "email", logger.MaskEmail(key), "expires_at", record.ExpiresAt)
	return nil
}

// Verify consumes the pending code for email. A code can be used once.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	key := normalize(email)

	record, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}

	if s.now().After(record.ExpiresAt) {
		_ = s.store.Delete(ctx, key)
		return ErrExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(strings.TrimSpace(code))) != nil {
		return s.recordMismatch(ctx, key, record)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to consume code: %w", err)
	}

	s.logger.Info("Email verified", "email", logger.MaskEmail(key))
	return nil
}

// recordMismatch counts a failed attempt against the pending code, discarding it once the cap is reached
func (s *Service) recordMismatch(ctx context.Context, key string, record *Record) error {
	record.Attempts++
	s.logger.Info("Verification code mismatch", "email", logger.MaskEmail(key), "attempts", record.Attempts)

	if s.maxAttempts > 0 && record.Attempts >= s.maxAttempts {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to discard code: %w", err)
		}
		s.logger.Warn("Verification code discarded after too many failed attempts", "email", logger.MaskEmail(key))
		return ErrTooManyAttempts
	}

	// The count keeps the code's remaining lifetime; a code at its last moment needs no update
	if remaining := record.ExpiresAt.Sub(s.now()); s.maxAttempts > 0 && remaining > 0 {
		if err := s.store.Save(ctx, *record, remaining); err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}
	}
	return ErrInvalid
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
