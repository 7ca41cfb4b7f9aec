package model

import "time"

// ContentAccessGrant is a short-lived bearer handle allowing one fetch of a verified document.
type ContentAccessGrant struct {
	Token      string    `json:"token"`
	DocumentID string    `json:"document_id"`
	CenterID   string    `json:"center_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the grant is past its expiry at now.
func (g *ContentAccessGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}
