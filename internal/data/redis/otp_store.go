// Package redis holds the Redis-backed stores.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/consultation-booking/internal/otp"
	goredis "github.com/go-redis/redis/v8"
)

const otpKeyFormat = "otp:%s"

// OTPStore keeps pending verification codes under otp:<email>, expiring with the code
type OTPStore struct {
	client *goredis.Client
}

func NewOTPStore(client *goredis.Client) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Save(ctx context.Context, record otp.Record, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal otp record: %w", err)
	}
	if err := s.client.Set(ctx, otpKey(record.Email), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save otp record: %w", err)
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, email string) (*otp.Record, error) {
	raw, err := s.client.Get(ctx, otpKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, otp.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get otp record: %w", err)
	}

	var record otp.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal otp record: %w", err)
	}
	return &record, nil
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp record: %w", err)
	}
	return nil
}

func otpKey(email string) string {
	return fmt.Sprintf(otpKeyFormat, email)
}
