package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Club struct {
	bun.BaseModel `bun:"table:clubs,alias:club"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,unique,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	Logo        string    `bun:"logo,nullzero" json:"logo,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

const (
	RoleMember = "member"
	RoleHead   = "head"
)

type ClubMember struct {
	bun.BaseModel `bun:"table:club_members,alias:member"`

	ID       string    `bun:"id,pk" json:"id"`
	UserID   string    `bun:"user_id,notnull" json:"user_id"`
	ClubID   string    `bun:"club_id,notnull" json:"club_id"`
	Role     string    `bun:"role,notnull,default:'member'" json:"role"`
	JoinedAt time.Time `bun:"joined_at,notnull" json:"joined_at"`

	User *Student `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Club *Club    `bun:"rel:belongs-to,join:club_id=id" json:"club,omitempty"`
}

type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`

	ID           string    `bun:"id,pk" json:"id"`
	UserID       string    `bun:"user_id,notnull" json:"user_id"`
	ClubID       string    `bun:"club_id,notnull" json:"club_id"`
	SubscribedAt time.Time `bun:"subscribed_at,notnull" json:"subscribed_at"`

	User *Student `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Club *Club    `bun:"rel:belongs-to,join:club_id=id" json:"club,omitempty"`
}
