package models

import "time"

// Principal is an API caller resolved from a verified identity token.
type Principal struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Email      string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Name       string    `json:"name"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	Subject    string    `gorm:"index" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
