package errors

import "net/http"

// Error code constants. Errors carry code + params only; clients own the
// user-facing copy. Backend logs are always English.

// Community / membership error codes.
const (
	CodeCommunityNotFound = "COMMUNITY_NOT_FOUND"
	CodeNotAMember        = "NOT_A_MEMBER"
	CodeAlreadyMember     = "ALREADY_MEMBER"
	CodeAlreadyPending    = "ALREADY_PENDING"
	CodeCannotRemoveOwner = "CANNOT_REMOVE_OWNER"
)

// Event error codes.
const (
	CodeEventNotFound = "EVENT_NOT_FOUND"
	CodeEventCanceled = "EVENT_CANCELED"
)

// Notification error codes.
const (
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	CodeDuplicate            = "DUPLICATE"
)

// Generic state/authorization error codes.
const (
	CodeUserNotFound  = "USER_NOT_FOUND"
	CodeNotFound      = "NOT_FOUND"
	CodeNotAuthorized = "NOT_AUTHORIZED"
	CodeInvalidState  = "INVALID_STATE"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeInternalError = "ERROR"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Convenience constructors using predefined codes.

// ErrCommunityNotFoundf creates a community not found error.
func ErrCommunityNotFoundf(communityID uint64) *AppError {
	return (&AppError{
		Code:       CodeCommunityNotFound,
		Message:    "community not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"community_id": communityID})
}

// ErrEventNotFoundf creates an event not found error.
func ErrEventNotFoundf(eventID uint64) *AppError {
	return (&AppError{
		Code:       CodeEventNotFound,
		Message:    "event not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"event_id": eventID})
}

// ErrNotAuthorizedf creates a forbidden error for a missing role/relationship.
func ErrNotAuthorizedf(reason string) *AppError {
	return &AppError{
		Code:       CodeNotAuthorized,
		Message:    reason,
		HTTPStatus: http.StatusForbidden,
	}
}

// ErrInvalidInputf creates a bad request error for a rejected field.
func ErrInvalidInputf(fieldName string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    "invalid or missing field: " + fieldName,
		HTTPStatus: http.StatusBadRequest,
	}
}
