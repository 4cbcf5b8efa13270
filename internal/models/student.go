package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Student struct {
	bun.BaseModel `bun:"table:students,alias:student"`

	ID              string    `bun:"id,pk" json:"id"`
	Username        string    `bun:"username,unique,notnull" json:"username"`
	Email           string    `bun:"email,unique,notnull" json:"email"`
	PasswordHash    string    `bun:"password_hash,notnull" json:"-"`
	Faculty         string    `bun:"faculty" json:"faculty"`
	Speciality      string    `bun:"speciality" json:"speciality"`
	WalletBalance   float64   `bun:"wallet_balance,notnull,default:0" json:"wallet_balance"`
	IsAdmin         bool      `bun:"is_admin,notnull,default:false" json:"is_admin"`
	IsEmailVerified bool      `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}
