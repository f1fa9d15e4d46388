package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrInvalidCaptcha     = errors.New("invalid captcha")
	ErrMissingCredentials = errors.New("missing credentials")
)

// Admin errors
var (
	ErrAdminNotFound         = errors.New("admin not found")
	ErrAdminAlreadyExists    = errors.New("admin already exists")
	ErrDefaultAdminProtected = errors.New("the default admin cannot be removed")
	ErrNotDefaultAdmin       = errors.New("only the default admin can manage admins")
)

// Second factor errors
var (
	ErrInvalidState        = errors.New("second factor state mismatch")
	ErrBrokerUnavailable   = errors.New("second factor provider unavailable")
	ErrSecondFactorDenied  = errors.New("second factor denied")
	ErrNoSecondFactorPhone = errors.New("no phone number enrolled for second factor")
)

// OTP errors
var (
	ErrOTPExpired     = errors.New("otp has expired")
	ErrOTPInvalid     = errors.New("invalid otp code")
	ErrOTPMaxAttempts = errors.New("maximum otp attempts exceeded")
	ErrOTPNotFound    = errors.New("otp not found")
	ErrOTPResendLimit = errors.New("otp resend limit exceeded")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
)

// Resource errors
var (
	ErrNotFound    = errors.New("resource not found")
	ErrForbidden   = errors.New("access denied")
	ErrInvalidNote = errors.New("title and content are required")
)

// File and analyzer errors
var (
	ErrFileRejected        = errors.New("file type not allowed")
	ErrMalwareDetected     = errors.New("malicious file detected")
	ErrScannerUnavailable  = errors.New("virus scanner unavailable")
	ErrAnalyzerUnavailable = errors.New("code analyzer unavailable")
	ErrAnalyzerOutput      = errors.New("invalid response format from code analyzer")
	ErrNoCode              = errors.New("no code provided")
)

// IsAuthFailure reports whether err must be surfaced as the generic
// invalid-credentials response.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUserInactive) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrSecondFactorDenied) ||
		errors.Is(err, ErrNoSecondFactorPhone) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrOTPExpired) ||
		errors.Is(err, ErrOTPInvalid) ||
		errors.Is(err, ErrOTPMaxAttempts) ||
		errors.Is(err, ErrOTPNotFound)
}
