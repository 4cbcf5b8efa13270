// Package authz is the single capability-check gate consulted before every
// mutating operation. Rules are a tagged decision table keyed by action, so
// the role logic is testable without any HTTP plumbing.
package authz

import (
	"context"
	"errors"
	"fmt"

	"ms-clubs/internal/auth"
)

// ErrForbidden is the typed denial surfaced to the API layer; it is never
// silently ignored.
var ErrForbidden = errors.New("forbidden")

type Action string

const (
	ActionManageClub   Action = "club:manage"
	ActionManageRoom   Action = "room:manage"
	ActionManageEvent  Action = "event:manage"
	ActionAddMember    Action = "member:add"
	ActionRemoveMember Action = "member:remove"
	ActionAssignHead   Action = "member:assign_head"
	ActionPurchase     Action = "ticket:purchase"
	ActionCancelTicket Action = "ticket:cancel"
	ActionSubscribe    Action = "subscription:manage"
	ActionWriteReview  Action = "review:write"
	ActionUpdateReview Action = "review:update"
	ActionDeleteReview Action = "review:delete"
	ActionTopUpWallet  Action = "wallet:topup"
	ActionViewStudent   Action = "student:view"
	ActionUpdateStudent Action = "student:update"
	ActionListStudents  Action = "student:list"
	ActionViewTicket    Action = "ticket:view"
)

// Resource carries the two scoping attributes a rule can match on: whose
// resource it is, and which club it belongs to.
type Resource struct {
	OwnerID string
	ClubID  string
}

// HeadChecker answers "is user X a head of club Y". The membership registry
// implements it.
type HeadChecker interface {
	IsHead(ctx context.Context, userID, clubID string) (bool, error)
}

type rule struct {
	adminOnly bool
	allowSelf bool
	allowHead bool
}

var rules = map[Action]rule{
	ActionManageClub:   {adminOnly: true},
	ActionManageRoom:   {adminOnly: true},
	ActionAssignHead:   {adminOnly: true},
	ActionTopUpWallet:  {adminOnly: true},
	ActionManageEvent:  {allowHead: true},
	ActionAddMember:    {allowHead: true},
	ActionRemoveMember: {allowHead: true},
	ActionPurchase:     {allowSelf: true},
	ActionSubscribe:    {allowSelf: true},
	ActionWriteReview:  {allowSelf: true},
	ActionUpdateReview: {allowSelf: true},
	ActionCancelTicket: {allowSelf: true, allowHead: true},
	ActionDeleteReview: {allowSelf: true, allowHead: true},
	ActionViewStudent:   {allowSelf: true, allowHead: true},
	ActionViewTicket:    {allowSelf: true, allowHead: true},
	ActionUpdateStudent: {allowSelf: true},
	ActionListStudents:  {adminOnly: true},
}

type Authorizer struct {
	Heads HeadChecker
}

func NewAuthorizer(heads HeadChecker) *Authorizer {
	return &Authorizer{Heads: heads}
}

// Can returns nil when user may perform action on res, ErrForbidden otherwise.
// Priority: administrators bypass everything, then club-head scope, then
// self-ownership, then deny.
func (a *Authorizer) Can(ctx context.Context, user *auth.Identity, action Action, res Resource) error {
	if user == nil {
		return ErrForbidden
	}
	if user.IsAdmin {
		return nil
	}

	r, ok := rules[action]
	if !ok || r.adminOnly {
		return ErrForbidden
	}

	if r.allowSelf && res.OwnerID != "" && res.OwnerID == user.UserID {
		return nil
	}

	if r.allowHead && res.ClubID != "" {
		isHead, err := a.Heads.IsHead(ctx, user.UserID, res.ClubID)
		if err != nil {
			return fmt.Errorf("head lookup: %w", err)
		}
		if isHead {
			return nil
		}
	}

	return ErrForbidden
}
