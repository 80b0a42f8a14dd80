package security

import (
	"testing"
)

func TestGenerateOTPShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != OTPDigits {
			t.Fatalf("expected %d digits, got %q", OTPDigits, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}

func TestVerifyOTP(t *testing.T) {
	key := []byte("handoff-key")
	hash := HashOTP("042531", key)

	if !VerifyOTP("042531", hash, key) {
		t.Fatal("expected matching code to verify")
	}
	if VerifyOTP("042532", hash, key) {
		t.Fatal("wrong code should not verify")
	}
	if VerifyOTP("042531", hash, []byte("other-key")) {
		t.Fatal("wrong key should not verify")
	}
}
