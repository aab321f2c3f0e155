// Package model defines user account state.
package model

import "time"

// User is one account row. XP and Level are maintained solely by the
// progression ledger.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	XP           int64     `json:"xp"`
	Level        int       `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public view of an account.
type Profile struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	XP                  int64     `json:"xp"`
	Level               int       `json:"level"`
	Badges              []string  `json:"badges"`
	CompletedChallenges []string  `json:"completed_challenges"`
	CreatedAt           time.Time `json:"created_at"`
}
