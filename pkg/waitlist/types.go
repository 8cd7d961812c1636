package waitlist

import "time"

// SignupRequest is the payload of POST /api/waitlist/signup.
type SignupRequest struct {
	Username      string `json:"username" binding:"required"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Password      string `json:"password"`
	Enabled       *bool  `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// SignupResponse reports the outcome of a signup.
type SignupResponse struct {
	UserID   string `json:"userID"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

const (
	StatusCreated = "created"
	StatusExists  = "exists"
)

// Entry is one waitlist member as returned by GET /api/waitlist/entries.
type Entry struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	Enabled       bool      `json:"enabled"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// EntriesResponse wraps the entry listing.
type EntriesResponse struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
}
