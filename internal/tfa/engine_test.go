package tfa

import (
	"errors"
	"testing"
)

func TestRegisterThenVerifyIssuesToken(t *testing.T) {
	svc := Run()

	code, err := svc.Register("user@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Verify("user@example.com", code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if token == "" {
		t.Fatalf("Verify returned an empty token")
	}
}

func TestVerifyWrongCodeFails(t *testing.T) {
	svc := Run()
	if _, err := svc.Register("user@example.com"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Verify("user@example.com", 999_999_999)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("Verify with wrong code = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyUnknownKeyFails(t *testing.T) {
	svc := Run()
	_, err := svc.Verify("nobody@example.com", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Verify on unknown key = %v, want ErrNotFound", err)
	}
}

func TestDeregisterForgetsKey(t *testing.T) {
	svc := Run()
	code, err := svc.Register("user@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Deregister("user@example.com"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if _, err := svc.Verify("user@example.com", code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Verify after Deregister = %v, want ErrNotFound", err)
	}
}

func TestTooManyRegisterRequestsTriggersCooldown(t *testing.T) {
	svc := Run()
	const key = "user@example.com"
	var lastErr error
	for i := 0; i < requestLimit+2; i++ {
		_, lastErr = svc.Register(key)
	}
	var tooMany *TooManyRegisterRequests
	if !errors.As(lastErr, &tooMany) {
		t.Fatalf("Register after exceeding the request limit = %v, want *TooManyRegisterRequests", lastErr)
	}
}

func TestTokenIssuanceBudgetIsEnforced(t *testing.T) {
	svc := Run()
	const key = "user@example.com"
	code, err := svc.Register(key)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < maxTokens; i++ {
		if _, err := svc.Verify(key, code); err != nil {
			t.Fatalf("Verify #%d: %v", i+1, err)
		}
	}
	if _, err := svc.Verify(key, code); !errors.Is(err, ErrTooManyTokenRequests) {
		t.Fatalf("Verify past the token budget = %v, want ErrTooManyTokenRequests", err)
	}
}
