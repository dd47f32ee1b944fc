package models

import (
	"database/sql"
	"time"
)

type Horse struct {
	ID         string
	TenantID   string
	Name       string
	Breed      sql.NullString
	Microchip  sql.NullString
	Status     string
	IntakeDate time.Time
	Notes      sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
