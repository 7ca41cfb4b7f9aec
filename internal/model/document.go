package model

import "time"

// Status is the position of a Document in the print handoff protocol.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOTPIssued Status = "otp_issued"
	StatusVerified  Status = "verified"
	StatusPrinted   Status = "printed"
	StatusExpired   Status = "expired"
	StatusDeleted   Status = "deleted"
)

// Terminal reports whether no further protocol transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusPrinted, StatusExpired, StatusDeleted:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOTPIssued, StatusVerified, StatusPrinted, StatusExpired, StatusDeleted:
		return true
	}
	return false
}

// Submitter is the contact triple captured at intake. For anonymous uploads all three
// fields are required; for authenticated uploads they mirror the owner's profile when known.
type Submitter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Document represents a file submitted for printing at a center.
// The file bytes live in object storage under StorageKey and are never embedded here.
type Document struct {
	ID          string     `json:"id"`
	CenterID    string     `json:"center_id"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Submitter   Submitter  `json:"submitter"`
	Filename    string     `json:"filename"`
	StorageKey  string     `json:"-"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Anonymous reports whether the document was submitted through a center's QR link.
func (d *Document) Anonymous() bool {
	return d.OwnerID == ""
}
