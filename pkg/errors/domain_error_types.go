package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DomainErrorType represents the category of a business error
type DomainErrorType string

const (
	DomainValidationError     DomainErrorType = "VALIDATION_ERROR"
	DomainNotFoundError       DomainErrorType = "NOT_FOUND"
	DomainConflictError       DomainErrorType = "CONFLICT"
	DomainAuthorizationError  DomainErrorType = "AUTHORIZATION_ERROR"
	DomainGoneError           DomainErrorType = "GONE"
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"
)

// Stable error codes exposed to API clients
const (
	CodeValidation                 = "VALIDATION_ERROR"
	CodeClubNotFound               = "CLUB_NOT_FOUND"
	CodeMembershipNotFound         = "MEMBERSHIP_NOT_FOUND"
	CodeInvitationNotFound         = "INVITATION_NOT_FOUND"
	CodeAlreadyMember              = "ALREADY_MEMBER"
	CodeUserAlreadyInvited         = "USER_ALREADY_INVITED"
	CodeCannotInviteExistingMember = "CANNOT_INVITE_EXISTING_MEMBER"
	CodeClubNameTaken              = "CLUB_NAME_TAKEN"
	CodeInsufficientPrivileges     = "INSUFFICIENT_PRIVILEGES"
	CodeCannotRemoveOwner          = "CANNOT_REMOVE_OWNER"
	CodeOperationNotAllowed        = "MEMBERSHIP_OPERATION_NOT_ALLOWED"
	CodeInvitationExpired          = "INVITATION_EXPIRED"
	CodeInvitationAlreadyProcessed = "INVITATION_ALREADY_PROCESSED"
	CodeInternal                   = "INTERNAL_ERROR"
	CodeAuthorizationService       = "AUTHORIZATION_SERVICE_ERROR"
)

// DomainError is a business error with a stable code
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// WithStatusCode overrides the HTTP status code
func (e *DomainError) WithStatusCode(code int) *DomainError {
	e.StatusCode = code
	return e
}

// Is matches on type and code so freshly built errors compare equal to the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return http.StatusBadRequest
	case DomainNotFoundError:
		return http.StatusNotFound
	case DomainConflictError:
		return http.StatusConflict
	case DomainAuthorizationError:
		return http.StatusForbidden
	case DomainGoneError:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// Sentinels for errors.Is comparisons. Never mutate these; use the constructors.
var (
	ErrClubNotFound               = NewDomainError(DomainNotFoundError, CodeClubNotFound, "Club not found")
	ErrMembershipNotFound         = NewDomainError(DomainNotFoundError, CodeMembershipNotFound, "Membership not found")
	ErrInvitationNotFound         = NewDomainError(DomainNotFoundError, CodeInvitationNotFound, "Invitation not found")
	ErrAlreadyMember              = NewDomainError(DomainConflictError, CodeAlreadyMember, "User is already a member of this club")
	ErrUserAlreadyInvited         = NewDomainError(DomainConflictError, CodeUserAlreadyInvited, "User already has a pending invitation")
	ErrCannotInviteExistingMember = NewDomainError(DomainConflictError, CodeCannotInviteExistingMember, "User is already a member of this club")
	ErrClubNameTaken              = NewDomainError(DomainConflictError, CodeClubNameTaken, "A club with this name already exists")
	ErrInsufficientPrivileges     = NewDomainError(DomainAuthorizationError, CodeInsufficientPrivileges, "Insufficient privileges")
	ErrCannotRemoveOwner          = NewDomainError(DomainAuthorizationError, CodeCannotRemoveOwner, "The club owner cannot be removed")
	ErrOperationNotAllowed        = NewDomainError(DomainAuthorizationError, CodeOperationNotAllowed, "Membership operation not allowed")
	ErrInvitationExpired          = NewDomainError(DomainGoneError, CodeInvitationExpired, "Invitation has expired")
	ErrInvitationAlreadyProcessed = NewDomainError(DomainConflictError, CodeInvitationAlreadyProcessed, "Invitation has already been processed")
	ErrAuthorizationService       = NewDomainError(DomainInfrastructureError, CodeAuthorizationService, "Authorization check failed")
)

// NewClubNotFoundError reports a missing club
func NewClubNotFoundError(clubID string) *DomainError {
	return NewDomainError(DomainNotFoundError, CodeClubNotFound, "Club not found").
		WithDetail("clubId", clubID)
}

// NewMembershipNotFoundError reports a missing or inactive membership
func NewMembershipNotFoundError(clubID, userID string) *DomainError {
	return NewDomainError(DomainNotFoundError, CodeMembershipNotFound, "Active membership not found").
		WithDetail("clubId", clubID).
		WithDetail("userId", userID)
}

// NewInvitationNotFoundError reports a missing invitation
func NewInvitationNotFoundError(invitationID string) *DomainError {
	return NewDomainError(DomainNotFoundError, CodeInvitationNotFound, "Invitation not found").
		WithDetail("invitationId", invitationID)
}

// NewAlreadyMemberError reports an existing non-removed membership
func NewAlreadyMemberError(clubID, userID string) *DomainError {
	return NewDomainError(DomainConflictError, CodeAlreadyMember, "User is already a member of this club").
		WithDetail("clubId", clubID).
		WithDetail("userId", userID)
}

// NewUserAlreadyInvitedError reports a duplicate pending invitation
func NewUserAlreadyInvitedError(clubID, invitee string) *DomainError {
	return NewDomainError(DomainConflictError, CodeUserAlreadyInvited, "User already has a pending invitation to this club").
		WithDetail("clubId", clubID).
		WithDetail("invitee", invitee)
}

// NewCannotInviteExistingMemberError reports an invitation aimed at a current member
func NewCannotInviteExistingMemberError(clubID, userID string) *DomainError {
	return NewDomainError(DomainConflictError, CodeCannotInviteExistingMember, "Cannot invite an existing member").
		WithDetail("clubId", clubID).
		WithDetail("userId", userID)
}

// NewClubNameTakenError reports a case-insensitive name collision
func NewClubNameTakenError(name string) *DomainError {
	return NewDomainError(DomainConflictError, CodeClubNameTaken, "A club with this name already exists").
		WithDetail("name", name)
}

// NewInsufficientPrivilegesError reports a failed capability check
func NewInsufficientPrivilegesError(capability string) *DomainError {
	return NewDomainError(DomainAuthorizationError, CodeInsufficientPrivileges, "Insufficient privileges").
		WithDetail("requiredCapability", capability)
}

// NewCannotRemoveOwnerError rejects removal of a club owner
func NewCannotRemoveOwnerError(clubID string) *DomainError {
	return NewDomainError(DomainAuthorizationError, CodeCannotRemoveOwner, "The club owner cannot be removed").
		WithDetail("clubId", clubID)
}

// NewOperationNotAllowedError rejects a membership operation for the caller's standing
func NewOperationNotAllowedError(reason string) *DomainError {
	return NewDomainError(DomainAuthorizationError, CodeOperationNotAllowed, reason)
}

// NewInvitationExpiredError reports an invitation past its expiry
func NewInvitationExpiredError(invitationID string) *DomainError {
	return NewDomainError(DomainGoneError, CodeInvitationExpired, "Invitation has expired").
		WithDetail("invitationId", invitationID)
}

// NewInvitationAlreadyProcessedError reports an invitation already in a terminal state
func NewInvitationAlreadyProcessedError(invitationID, status string) *DomainError {
	return NewDomainError(DomainConflictError, CodeInvitationAlreadyProcessed, "Invitation has already been processed").
		WithDetail("invitationId", invitationID).
		WithDetail("status", status)
}

// NewAuthorizationServiceError wraps an unexpected failure during an authorization lookup
func NewAuthorizationServiceError(cause error) *DomainError {
	return NewDomainError(DomainInfrastructureError, CodeAuthorizationService, "Authorization check failed").
		WithCause(cause)
}

// DomainErrorResponse is the transport form of a domain error
type DomainErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      DomainErrorType        `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// NewDomainErrorResponse creates an error response from a domain error
func NewDomainErrorResponse(err *DomainError, requestID string) *DomainErrorResponse {
	details := err.Details
	if err.StatusCode >= http.StatusInternalServerError {
		details = nil
	}
	return &DomainErrorResponse{
		Error:     true,
		Type:      err.Type,
		Code:      err.Code,
		Message:   err.Message,
		Details:   details,
		Retryable: err.Retryable,
		RequestID: requestID,
		Timestamp: timeNow().UTC().Format(time.RFC3339),
	}
}

// overridden in tests
var timeNow = func() time.Time {
	return time.Now()
}
