package models

import "strings"

type Customer struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:100;not null" json:"name"`
	Code        string  `gorm:"size:50;uniqueIndex;not null" json:"code"`
	PhoneNumber *string `gorm:"size:20" json:"phone_number"`
	Orders      []Order `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Phone returns the trimmed phone number, or "" when none is on file.
func (c Customer) Phone() string {
	if c.PhoneNumber == nil {
		return ""
	}
	return strings.TrimSpace(*c.PhoneNumber)
}
