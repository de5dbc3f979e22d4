// Package domain defines the structured result envelope shared by every core
// operation. Expected failure modes (authorization, state mismatch, missing
// rows) are values, not errors: operations always return a Result and never
// let infrastructure errors escape the module boundary.
package domain

// Status is the machine-readable outcome of a core operation.
type Status string

// Operation outcomes.
const (
	StatusOK                Status = "OK"
	StatusInvalidInput      Status = "INVALID_INPUT"
	StatusNotFound          Status = "NOT_FOUND"
	StatusCommunityNotFound Status = "COMMUNITY_NOT_FOUND"
	StatusEventNotFound     Status = "EVENT_NOT_FOUND"
	StatusUserNotFound      Status = "USER_NOT_FOUND"
	StatusNotAMember        Status = "NOT_A_MEMBER"
	StatusNotAuthorized     Status = "NOT_AUTHORIZED"
	StatusInvalidState      Status = "INVALID_STATE"
	StatusAlreadyMember     Status = "ALREADY_MEMBER"
	StatusAlreadyPending    Status = "ALREADY_PENDING"
	StatusCannotRemoveOwner Status = "CANNOT_REMOVE_OWNER"
	StatusEventCanceled     Status = "EVENT_CANCELED"
	StatusDuplicate         Status = "DUPLICATE"
	StatusError             Status = "ERROR"
)

// Code constants for OK results that carry extra meaning.
const (
	CodeMembershipLeftCommunityDeleted = "MEMBERSHIP_LEFT_COMMUNITY_DELETED"
)

// Result is the envelope every core operation returns. It is the wire
// contract for any HTTP layer built on top: handlers translate Status to a
// transport status code and serialize the rest as-is.
type Result[T any] struct {
	Status      Status         `json:"status"`
	Success     bool           `json:"success"`
	Code        string         `json:"code"`
	RequestID   string         `json:"request_id"`
	Diagnostics map[string]any `json:"diagnostics"`
	Data        T              `json:"data,omitempty"`
}

// OK builds a successful result.
func OK[T any](requestID string, data T, reason string) Result[T] {
	return Result[T]{
		Status:      StatusOK,
		Success:     true,
		Code:        string(StatusOK),
		RequestID:   requestID,
		Diagnostics: map[string]any{"reason": reason},
		Data:        data,
	}
}

// OKCode builds a successful result with a more specific machine code
// (e.g. MEMBERSHIP_LEFT_COMMUNITY_DELETED).
func OKCode[T any](requestID, code string, data T, reason string) Result[T] {
	r := OK(requestID, data, reason)
	r.Code = code
	return r
}

// Duplicate builds an idempotent no-op result. Duplicates report success:
// the caller's intent is already satisfied by an earlier invocation.
func Duplicate[T any](requestID string, data T, reason string) Result[T] {
	return Result[T]{
		Status:      StatusDuplicate,
		Success:     true,
		Code:        string(StatusDuplicate),
		RequestID:   requestID,
		Diagnostics: map[string]any{"reason": reason},
		Data:        data,
	}
}

// StatusResult builds a result with an explicit status and success flag, for
// outcomes that are neither plain OK nor failures — resolving a membership
// that does not exist is a successful query with status NOT_A_MEMBER.
func StatusResult[T any](status Status, success bool, requestID string, data T, reason string) Result[T] {
	return Result[T]{
		Status:      status,
		Success:     success,
		Code:        string(status),
		RequestID:   requestID,
		Diagnostics: map[string]any{"reason": reason},
		Data:        data,
	}
}

// Fail builds a non-success result for an expected failure mode.
func Fail[T any](status Status, requestID, reason string) Result[T] {
	return Result[T]{
		Status:      status,
		Success:     false,
		Code:        string(status),
		RequestID:   requestID,
		Diagnostics: map[string]any{"reason": reason},
	}
}

// Errorf converts an infrastructure error into an ERROR result, capturing the
// underlying message in diagnostics. The error itself is never re-thrown.
func Errorf[T any](requestID, reason string, err error) Result[T] {
	diag := map[string]any{"reason": reason}
	if err != nil {
		diag["error"] = err.Error()
	}
	return Result[T]{
		Status:      StatusError,
		Success:     false,
		Code:        string(StatusError),
		RequestID:   requestID,
		Diagnostics: diag,
	}
}

// With attaches an extra diagnostic entry and returns the result for chaining.
func (r Result[T]) With(key string, value any) Result[T] {
	if r.Diagnostics == nil {
		r.Diagnostics = map[string]any{}
	}
	r.Diagnostics[key] = value
	return r
}

// Reason returns the human-readable reason diagnostic.
func (r Result[T]) Reason() string {
	if r.Diagnostics == nil {
		return ""
	}
	if s, ok := r.Diagnostics["reason"].(string); ok {
		return s
	}
	return ""
}
