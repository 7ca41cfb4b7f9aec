package model

import "time"

// ConsumeReason records why a OneTimeCode stopped being live.
type ConsumeReason string

const (
	ConsumeVerified   ConsumeReason = "verified"
	ConsumeExpired    ConsumeReason = "expired"
	ConsumeSuperseded ConsumeReason = "superseded"
	ConsumeExhausted  ConsumeReason = "exhausted"
	ConsumeRevoked    ConsumeReason = "revoked"
)

// OneTimeCode authorizes a single print of one document.
// Only an HMAC digest of the code is persisted.
type OneTimeCode struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	Digest        string        `json:"-"`
	IssuedAt      time.Time     `json:"issued_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Attempts      int           `json:"attempts"`
	Consumed      bool          `json:"consumed"`
	ConsumedAt    *time.Time    `json:"consumed_at,omitempty"`
	ConsumeReason ConsumeReason `json:"consume_reason,omitempty"`
}

// Expired reports whether the code is past its expiry at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Live reports whether the code can still be verified at now.
func (c *OneTimeCode) Live(now time.Time) bool {
	return !c.Consumed && !c.Expired(now)
}
