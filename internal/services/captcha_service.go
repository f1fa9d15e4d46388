package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/you/bokohub/domain"
)

// captchaAlphabet leaves out characters that are easy to confuse
const captchaAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CaptchaServiceImpl keeps the expected CAPTCHA answer in the session
type CaptchaServiceImpl struct {
	length int
}

// NewCaptchaService creates a CAPTCHA service issuing answers of the given length
func NewCaptchaService(length int) *CaptchaServiceImpl {
	if length <= 0 {
		length = 5
	}
	return &CaptchaServiceImpl{length: length}
}

// Issue stores a fresh answer in the session, replacing any previous one
func (s *CaptchaServiceImpl) Issue(ctx context.Context, session *domain.SessionRecord) (string, error) {
	buf := make([]byte, s.length)
	max := big.NewInt(int64(len(captchaAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate captcha: %w", err)
		}
		buf[i] = captchaAlphabet[n.Int64()]
	}
	text := string(buf)
	session.SetCaptcha(text)
	return text, nil
}

// Verify consumes the stored answer whatever the outcome, so each challenge
// can be tried once
func (s *CaptchaServiceImpl) Verify(session *domain.SessionRecord, answer string) bool {
	expected := session.TakeCaptcha()
	if expected == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), expected)
}

var _ domain.CaptchaService = (*CaptchaServiceImpl)(nil)
