package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// OTPDigits is the fixed length of handoff codes.
const OTPDigits = 6

// GenerateOTP returns a zero-padded 6-digit numeric code.
func GenerateOTP() (string, error) {
	var buff [8]byte
	if _, err := rand.Read(buff[:]); err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	n := binary.BigEndian.Uint64(buff[:]) % 1_000_000
	return fmt.Sprintf("%06d", n), nil
}

// HashOTP produces a keyed digest of the code. Codes are never stored in
// plaintext; the key comes from service config.
func HashOTP(code string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyOTP compares a candidate code against the stored digest in constant
// time.
func VerifyOTP(code, storedHash string, key []byte) bool {
	computed := HashOTP(code, key)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
