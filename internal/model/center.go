package model

import "time"

// Center is a print shop account. Its ID is public: it is embedded in the anonymous upload link.
type Center struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	OwnerAccountID string    `json:"-"`
	Active         bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// CenterProfile is the public projection of a Center.
type CenterProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Profile returns the public projection of c.
func (c *Center) Profile() CenterProfile {
	return CenterProfile{ID: c.ID, Name: c.Name, Address: c.Address}
}
