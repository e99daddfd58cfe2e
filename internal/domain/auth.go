package domain

import "time"

// Token is an issued bearer token. Validity is fully determined by the signature and
// ExpiresAt; nothing about it is stored server side.
type Token struct {
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Encoded   string
}

// TTL is the lifetime the token was issued with.
func (t Token) TTL() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}
