package domain

import (
	"errors"
	"testing"
)

func TestOKResult(t *testing.T) {
	r := OK("req-1", 42, "membership resolved")

	if !r.Success {
		t.Error("OK result should report success")
	}
	if r.Status != StatusOK || r.Code != "OK" {
		t.Errorf("Status/Code = %s/%s, want OK/OK", r.Status, r.Code)
	}
	if r.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", r.RequestID)
	}
	if r.Reason() != "membership resolved" {
		t.Errorf("Reason() = %q", r.Reason())
	}
	if r.Data != 42 {
		t.Errorf("Data = %d, want 42", r.Data)
	}
}

func TestOKCodeOverridesCode(t *testing.T) {
	r := OKCode("req-2", CodeMembershipLeftCommunityDeleted, struct{}{}, "sole member left")

	if r.Status != StatusOK {
		t.Errorf("Status = %s, want OK", r.Status)
	}
	if r.Code != CodeMembershipLeftCommunityDeleted {
		t.Errorf("Code = %q, want %q", r.Code, CodeMembershipLeftCommunityDeleted)
	}
}

func TestDuplicateIsSuccess(t *testing.T) {
	r := Duplicate("req-3", "existing", "unread twin found")

	if !r.Success {
		t.Error("DUPLICATE must be treated as success")
	}
	if r.Status != StatusDuplicate {
		t.Errorf("Status = %s, want DUPLICATE", r.Status)
	}
}

func TestFailAndErrorf(t *testing.T) {
	f := Fail[string](StatusNotAuthorized, "req-4", "actor is not an owner")
	if f.Success {
		t.Error("Fail result should not report success")
	}
	if f.Code != "NOT_AUTHORIZED" {
		t.Errorf("Code = %q", f.Code)
	}

	e := Errorf[string]("req-5", "query failed", errors.New("connection refused"))
	if e.Status != StatusError {
		t.Errorf("Status = %s, want ERROR", e.Status)
	}
	if e.Diagnostics["error"] != "connection refused" {
		t.Errorf("diagnostics error = %v", e.Diagnostics["error"])
	}
}

func TestWithDiagnostic(t *testing.T) {
	r := Fail[any](StatusInvalidState, "req-6", "membership is not pending").
		With("current_status", "APPROVED")

	if r.Diagnostics["current_status"] != "APPROVED" {
		t.Errorf("diagnostics = %v", r.Diagnostics)
	}
	if r.Reason() != "membership is not pending" {
		t.Errorf("Reason() = %q", r.Reason())
	}
}
