package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationExpired  = "expired"
)

type EmailVerification struct {
	bun.BaseModel `bun:"table:email_verifications,alias:verification"`

	Code       string    `bun:"code,pk" json:"code"`
	UserID     string    `bun:"user_id,notnull" json:"user_id"`
	Status     string    `bun:"status,notnull,default:'pending'" json:"status"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
	Expiration time.Time `bun:"expiration,notnull" json:"expiration"`
}

func (v *EmailVerification) IsExpired(now time.Time) bool {
	return !now.Before(v.Expiration)
}
