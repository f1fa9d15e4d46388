package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/bokohub/domain"
)

// OTPServiceImpl implements domain.OTPService using Redis persistence
type OTPServiceImpl struct {
	notificationSvc domain.NotificationService
	redisClient     *redis.Client
	config          OTPConfig
}

type OTPConfig struct {
	Length       int
	TTL          time.Duration
	MaxAttempts  int
	ResendWindow time.Duration
}

// NewOTPService creates a new Redis-based OTP service
func NewOTPService(notificationSvc domain.NotificationService, redisClient *redis.Client, config OTPConfig) *OTPServiceImpl {
	if config.Length <= 0 {
		config.Length = 6
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	return &OTPServiceImpl{
		notificationSvc: notificationSvc,
		redisClient:     redisClient,
		config:          config,
	}
}

func otpKeys(challengeKey string) (code, attempts string) {
	return "otp:" + challengeKey, "otp:att:" + challengeKey
}

func resendKey(phone string) string {
	return "otp:res:" + phone
}

// Generate stores a fresh code for challengeKey and texts it to phone
func (s *OTPServiceImpl) Generate(ctx context.Context, challengeKey, phone string) error {
	otpKey, attemptsKey := otpKeys(challengeKey)
	resend := resendKey(phone)

	canResend, _, err := s.CanResend(ctx, phone)
	if err != nil {
		return err
	}
	if !canResend {
		return domain.ErrOTPResendLimit
	}

	code, err := s.generateSecureCode()
	if err != nil {
		return fmt.Errorf("failed to generate OTP code: %w", err)
	}

	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, otpKey, code, s.config.TTL)
		pipe.Set(ctx, attemptsKey, 0, s.config.TTL)
		pipe.Set(ctx, resend, 1, s.config.ResendWindow)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store OTP in Redis: %w", err)
	}

	message := fmt.Sprintf("Your bokohub verification code is: %s. Valid for %d minutes.", code, int(s.config.TTL.Minutes()))
	if err := s.notificationSvc.SendSMS(phone, message); err != nil {
		// Clean up Redis entries if SMS fails
		s.redisClient.Del(ctx, otpKey, attemptsKey, resend)
		return fmt.Errorf("%w: send sms: %v", domain.ErrBrokerUnavailable, err)
	}
	return nil
}

// Verify checks code against the one stored for challengeKey. A correct code
// is consumed.
func (s *OTPServiceImpl) Verify(ctx context.Context, challengeKey, code string) (bool, error) {
	otpKey, attemptsKey := otpKeys(challengeKey)

	storedCode, err := s.redisClient.Get(ctx, otpKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, domain.ErrOTPNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to get OTP from Redis: %w", err)
	}

	attempts, err := s.redisClient.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment attempts: %w", err)
	}
	if attempts > int64(s.config.MaxAttempts) {
		s.redisClient.Del(ctx, otpKey, attemptsKey)
		return false, domain.ErrOTPMaxAttempts
	}

	if subtle.ConstantTimeCompare([]byte(storedCode), []byte(code)) != 1 {
		return false, domain.ErrOTPInvalid
	}

	s.redisClient.Del(ctx, otpKey, attemptsKey)
	return true, nil
}

// CanResend reports whether phone is outside its resend window, and the
// remaining wait in seconds otherwise
func (s *OTPServiceImpl) CanResend(ctx context.Context, phone string) (bool, int64, error) {
	ttl, err := s.redisClient.TTL(ctx, resendKey(phone)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check resend TTL: %w", err)
	}

	// If TTL <= 0, key doesn't exist or has expired - can resend
	if ttl <= 0 {
		return true, 0, nil
	}
	return false, int64(ttl.Seconds()), nil
}

// generateSecureCode generates a cryptographically secure OTP code
func (s *OTPServiceImpl) generateSecureCode() (string, error) {
	digits := make([]byte, s.config.Length)
	for i := range digits {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}
	return string(digits), nil
}

var _ domain.OTPService = (*OTPServiceImpl)(nil)
