package services

import "errors"

// Shared errors used across services and the HTTP mapping layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed     = errors.New("validation failed")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrPartyNameRequired    = errors.New("party name is required")
	ErrPartyFull            = errors.New("party is full")
	ErrPartyNotJoinable     = errors.New("party is not open for joining")
	ErrInvalidSkillLevel    = errors.New("invalid skill level")
	ErrListingTitleRequired = errors.New("listing title is required")
	ErrInvalidPrice         = errors.New("price must not be negative")
	ErrConfirmationRequired = errors.New("operation requires explicit confirmation")

	// Authentication and authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrAuthNicknameTaken      = errors.New("nickname is already taken")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
	ErrHostOnly               = errors.New("only the party host can perform this action")
	ErrSellerOnly             = errors.New("only the seller can modify this listing")

	// Entity lookups
	ErrUserNotFound    = errors.New("user not found")
	ErrPartyNotFound   = errors.New("party not found")
	ErrMemberNotFound  = errors.New("party member not found")
	ErrListingNotFound = errors.New("listing not found")

	// Sessions
	ErrNoActiveSession  = errors.New("no active session for this party")
	ErrSessionCorrupted = errors.New("stored session snapshot is not readable")
)
