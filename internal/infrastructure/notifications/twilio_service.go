package notifications

import (
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/you/bokohub/domain"
)

// messageCreator is the slice of the Twilio API used here
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioServiceImpl implements domain.NotificationService
type TwilioServiceImpl struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioService creates a new Twilio notification service. Missing
// credentials are a configuration error.
func NewTwilioService(accountSID, authToken, fromNumber string) (domain.NotificationService, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, errors.New("twilio: account sid, auth token and from number are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioServiceImpl{
		api:        client.Api,
		fromNumber: fromNumber,
	}, nil
}

// SendSMS implements domain.NotificationService
func (t *TwilioServiceImpl) SendSMS(to, message string) error {
	if to == "" {
		return errors.New("twilio: empty destination number")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	return nil
}
