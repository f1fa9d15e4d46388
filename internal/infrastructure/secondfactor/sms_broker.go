package secondfactor

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/you/bokohub/domain"
)

// SMSBroker runs the second factor as a one-time code texted to the user's
// enrolled phone. The user is sent to VerifyURL to type the code in.
type SMSBroker struct {
	otp       domain.OTPService
	verifyURL *url.URL
}

// NewSMSBroker creates a broker backed by the OTP service
func NewSMSBroker(otp domain.OTPService, verifyURL string) (*SMSBroker, error) {
	if otp == nil {
		return nil, errors.New("sms broker: otp service is required")
	}
	u, err := url.Parse(verifyURL)
	if err != nil || verifyURL == "" {
		return nil, fmt.Errorf("sms broker: invalid verify url %q", verifyURL)
	}
	return &SMSBroker{otp: otp, verifyURL: u}, nil
}

func (b *SMSBroker) Name() string { return "sms" }

// HealthCheck always succeeds. Delivery failures surface from BeginChallenge.
func (b *SMSBroker) HealthCheck(ctx context.Context) error { return nil }

// BeginChallenge texts a fresh code and returns the code-entry page carrying state
func (b *SMSBroker) BeginChallenge(ctx context.Context, user *domain.UserAccount, stateNonce string) (string, error) {
	if user.Phone == "" {
		return "", domain.ErrNoSecondFactorPhone
	}
	if err := b.otp.Generate(ctx, user.Username, user.Phone); err != nil {
		return "", err
	}

	u := *b.verifyURL
	q := u.Query()
	q.Set("state", stateNonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CompleteChallenge checks the code the user typed in
func (b *SMSBroker) CompleteChallenge(ctx context.Context, code string, user *domain.UserAccount) error {
	if code == "" {
		return domain.ErrSecondFactorDenied
	}
	ok, err := b.otp.Verify(ctx, user.Username, code)
	if err != nil {
		if domain.IsAuthFailure(err) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	if !ok {
		return domain.ErrSecondFactorDenied
	}
	return nil
}

var _ domain.SecondFactorBroker = (*SMSBroker)(nil)
