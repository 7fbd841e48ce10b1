package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	otpFloor = 100000
	otpSpan  = 900000
)

// GenerateOTP returns a uniformly distributed six digit verification code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", otpFloor+n.Int64()), nil
}
