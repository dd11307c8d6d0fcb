package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

// ErrResendTooSoon a code was sent to this mobile within the resend window.
var ErrResendTooSoon = errors.New("otp already sent, retry later")

var (
	codePattern   = regexp.MustCompile(`^[0-9]{4}$`)
	mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// Verifier one-time code channel for a mobile number.
type Verifier interface {
	Send(ctx context.Context, mobile string) error
	Verify(ctx context.Context, mobile, code string) error
}

// ValidMobile reports whether mobile is a 10-digit number.
func ValidMobile(mobile string) bool { return mobilePattern.MatchString(mobile) }

// FixedVerifier accepts one configured code for every mobile. Development only.
type FixedVerifier struct {
	code   string
	logger *zap.Logger
}

func NewFixedVerifier(code string, logger *zap.Logger) (*FixedVerifier, error) {
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("fixed otp code must be 4 digits: %w", domain.ErrInvalidInput)
	}
	return &FixedVerifier{code: code, logger: logger}, nil
}

func (v *FixedVerifier) Send(_ context.Context, mobile string) error {
	if !ValidMobile(mobile) {
		return fmt.Errorf("mobile must be 10 digits: %w", domain.ErrInvalidInput)
	}
	v.logger.Info("otp simulated, fixed code in use", zap.String("mobile", maskMobile(mobile)))
	return nil
}

func (v *FixedVerifier) Verify(_ context.Context, _ string, code string) error {
	if code != v.code {
		return domain.ErrOTPMismatch
	}
	return nil
}

var _ Verifier = (*FixedVerifier)(nil)

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

func maskMobile(m string) string {
	if len(m) < 4 {
		return "****"
	}
	return "******" + m[len(m)-4:]
}
