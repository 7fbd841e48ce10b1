package redis

import "strings"

// Every key lives under catalog:<area>:...
const keyNamespace = "catalog"

type keyArea string

const (
	areaIdempotency keyArea = "idempotency"
	areaRateLimit   keyArea = "rate_limit"
	areaSession     keyArea = "session"
	areaOTP         keyArea = "otp"
)

func key(area keyArea, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(string(area))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey scopes a client Idempotency-Key to caller and route.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(areaIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key(areaRateLimit, scope)
}

// AccessSessionKey holds the refresh state for one access token jti.
func (c *Client) AccessSessionKey(accessID string) string {
	return key(areaSession, "access", accessID)
}

// OTPCooldownKey is case-insensitive in the email.
func (c *Client) OTPCooldownKey(email string) string {
	return key(areaOTP, "cooldown", strings.ToLower(email))
}
