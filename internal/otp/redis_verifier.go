package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"india-blood-connect/internal/domain"
)

const (
	codeKeyPrefix     = "ibc:otp:code:"
	resendKeyPrefix   = "ibc:otp:resend:"
	attemptsKeyPrefix = "ibc:otp:attempts:"

	maxAttempts = 5
)

// RedisVerifier issues random codes and keeps only their bcrypt hash in Redis.
type RedisVerifier struct {
	client       *redis.Client
	sender       Sender
	ttl          time.Duration
	resendWindow time.Duration
	logger       *zap.Logger
}

func NewRedisVerifier(client *redis.Client, sender Sender, ttl, resendWindow time.Duration, logger *zap.Logger) *RedisVerifier {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisVerifier{client: client, sender: sender, ttl: ttl, resendWindow: resendWindow, logger: logger}
}

func (v *RedisVerifier) Send(ctx context.Context, mobile string) error {
	if !ValidMobile(mobile) {
		return fmt.Errorf("mobile must be 10 digits: %w", domain.ErrInvalidInput)
	}
	if v.resendWindow > 0 {
		ok, err := v.client.SetNX(ctx, resendKeyPrefix+mobile, "1", v.resendWindow).Result()
		if err != nil {
			return fmt.Errorf("failed to check resend window: %w", err)
		}
		if !ok {
			return ErrResendTooSoon
		}
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}

	_, err = v.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, codeKeyPrefix+mobile, hash, v.ttl)
		p.Del(ctx, attemptsKeyPrefix+mobile)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}

	if err := v.sender.SendCode(ctx, mobile, code); err != nil {
		// let the user retry right away
		v.client.Del(ctx, resendKeyPrefix+mobile, codeKeyPrefix+mobile)
		return fmt.Errorf("failed to deliver otp: %w", err)
	}
	v.logger.Info("otp sent", zap.String("mobile", maskMobile(mobile)))
	return nil
}

// Verify consumes the code on success. After maxAttempts wrong codes the
// stored code is dropped and a new one must be requested.
func (v *RedisVerifier) Verify(ctx context.Context, mobile, code string) error {
	hash, err := v.client.Get(ctx, codeKeyPrefix+mobile).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrOTPMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to read otp: %w", err)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		n, err := v.client.Incr(ctx, attemptsKeyPrefix+mobile).Result()
		if err == nil {
			v.client.Expire(ctx, attemptsKeyPrefix+mobile, v.ttl)
		}
		if n >= maxAttempts {
			v.client.Del(ctx, codeKeyPrefix+mobile, attemptsKeyPrefix+mobile)
			v.logger.Warn("otp attempts exhausted", zap.String("mobile", maskMobile(mobile)))
		}
		return domain.ErrOTPMismatch
	}

	v.client.Del(ctx, codeKeyPrefix+mobile, attemptsKeyPrefix+mobile)
	return nil
}

var _ Verifier = (*RedisVerifier)(nil)
