package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
)

// fakeHeads marks user/club pairs as head relationships.
type fakeHeads struct {
	heads map[string]string
}

func (f *fakeHeads) IsHead(_ context.Context, userID, clubID string) (bool, error) {
	return f.heads[userID] == clubID, nil
}

func TestAuthorizerDecisionTable(t *testing.T) {
	admin := &auth.Identity{UserID: "admin-1", IsAdmin: true}
	head := &auth.Identity{UserID: "head-1"}
	student := &auth.Identity{UserID: "student-1"}

	az := authz.NewAuthorizer(&fakeHeads{heads: map[string]string{"head-1": "club-1"}})
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *auth.Identity
		action  authz.Action
		res     authz.Resource
		allowed bool
	}{
		{"admin bypasses everything", admin, authz.ActionManageClub, authz.Resource{}, true},
		{"admin cancels any ticket", admin, authz.ActionCancelTicket, authz.Resource{OwnerID: "someone"}, true},

		{"student cannot manage clubs", student, authz.ActionManageClub, authz.Resource{}, false},
		{"head cannot manage clubs", head, authz.ActionManageClub, authz.Resource{ClubID: "club-1"}, false},
		{"student cannot manage rooms", student, authz.ActionManageRoom, authz.Resource{}, false},
		{"student cannot assign heads", student, authz.ActionAssignHead, authz.Resource{ClubID: "club-1"}, false},
		{"head cannot assign heads", head, authz.ActionAssignHead, authz.Resource{ClubID: "club-1"}, false},
		{"student cannot top up wallets", student, authz.ActionTopUpWallet, authz.Resource{OwnerID: "student-1"}, false},

		{"head manages events in own club", head, authz.ActionManageEvent, authz.Resource{ClubID: "club-1"}, true},
		{"head cannot manage events elsewhere", head, authz.ActionManageEvent, authz.Resource{ClubID: "club-2"}, false},
		{"student cannot manage events", student, authz.ActionManageEvent, authz.Resource{ClubID: "club-1"}, false},

		{"student purchases for self", student, authz.ActionPurchase, authz.Resource{OwnerID: "student-1"}, true},
		{"student cannot purchase for another", student, authz.ActionPurchase, authz.Resource{OwnerID: "student-2"}, false},

		{"owner cancels own ticket", student, authz.ActionCancelTicket, authz.Resource{OwnerID: "student-1"}, true},
		{"head cancels ticket in own club", head, authz.ActionCancelTicket, authz.Resource{OwnerID: "student-1", ClubID: "club-1"}, true},
		{"head cannot cancel outside own club", head, authz.ActionCancelTicket, authz.Resource{OwnerID: "student-1", ClubID: "club-2"}, false},
		{"stranger cannot cancel", student, authz.ActionCancelTicket, authz.Resource{OwnerID: "student-2", ClubID: "club-2"}, false},

		{"student subscribes self", student, authz.ActionSubscribe, authz.Resource{OwnerID: "student-1"}, true},
		{"student cannot subscribe another", student, authz.ActionSubscribe, authz.Resource{OwnerID: "student-2"}, false},

		{"author updates own review", student, authz.ActionUpdateReview, authz.Resource{OwnerID: "student-1"}, true},
		{"head cannot update another's review", head, authz.ActionUpdateReview, authz.Resource{OwnerID: "student-1", ClubID: "club-1"}, false},
		{"head deletes review in own club", head, authz.ActionDeleteReview, authz.Resource{OwnerID: "student-1", ClubID: "club-1"}, true},

		{"student views self", student, authz.ActionViewStudent, authz.Resource{OwnerID: "student-1"}, true},
		{"head views students of own club", head, authz.ActionViewStudent, authz.Resource{OwnerID: "student-1", ClubID: "club-1"}, true},
		{"student cannot view another", student, authz.ActionViewStudent, authz.Resource{OwnerID: "student-2"}, false},

		{"nil identity is denied", nil, authz.ActionPurchase, authz.Resource{OwnerID: "student-1"}, false},
		{"unknown action is denied", student, authz.Action("bogus"), authz.Resource{OwnerID: "student-1"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := az.Can(ctx, tc.user, tc.action, tc.res)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, authz.ErrForbidden)
			}
		})
	}
}
