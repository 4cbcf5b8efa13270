package membership_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/membership"
	"ms-clubs/internal/membership/db"
	"ms-clubs/internal/models"
)

func setupService(t *testing.T) (*membership.Service, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Student)(nil),
		(*models.Club)(nil),
		(*models.ClubMember)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	store := &db.DB{Bun: bunDB}
	svc := membership.NewService(store, authz.NewAuthorizer(store), nil, logger.NewLogger())
	return svc, bunDB
}

func insertStudent(t *testing.T, bunDB *bun.DB) string {
	student := models.Student{
		ID:           uuid.NewString(),
		Username:     "student-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@campus.edu",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&student).Exec(context.Background())
	assert.NoError(t, err)
	return student.ID
}

func insertClub(t *testing.T, bunDB *bun.DB) string {
	club := models.Club{
		ID:        uuid.NewString(),
		Name:      "Club " + uuid.NewString()[:8],
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&club).Exec(context.Background())
	assert.NoError(t, err)
	return club.ID
}

var admin = &auth.Identity{UserID: "admin-1", IsAdmin: true}

func TestAddMember(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	userID := insertStudent(t, bunDB)

	m, err := svc.AddMember(ctx, admin, clubID, userID, "")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	_, err = svc.AddMember(ctx, admin, clubID, userID, "")
	assert.ErrorIs(t, err, membership.ErrDuplicateMembership)

	_, err = svc.AddMember(ctx, admin, "missing", userID, "")
	assert.ErrorIs(t, err, membership.ErrClubNotFound)

	_, err = svc.AddMember(ctx, admin, clubID, "missing", "")
	assert.ErrorIs(t, err, membership.ErrStudentNotFound)

	_, err = svc.AddMember(ctx, admin, clubID, insertStudent(t, bunDB), "owner")
	assert.ErrorIs(t, err, membership.ErrInvalidRole)
}

func TestAddMemberHeadScope(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	otherClubID := insertClub(t, bunDB)
	headID := insertStudent(t, bunDB)
	newbieID := insertStudent(t, bunDB)

	_, _, err := svc.AssignHead(ctx, admin, clubID, headID)
	assert.NoError(t, err)

	head := &auth.Identity{UserID: headID}

	// A head may add plain members to their own club.
	_, err = svc.AddMember(ctx, head, clubID, newbieID, models.RoleMember)
	assert.NoError(t, err)

	// Not to other clubs.
	_, err = svc.AddMember(ctx, head, otherClubID, newbieID, models.RoleMember)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	// And never with the head role; that stays with administrators.
	_, err = svc.AddMember(ctx, head, clubID, insertStudent(t, bunDB), models.RoleHead)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestAssignHead(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	userID := insertStudent(t, bunDB)

	m, created, err := svc.AssignHead(ctx, admin, clubID, userID)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleHead, m.Role)

	// The student and club ride along for the API's message body.
	assert.NotNil(t, m.User)
	assert.NotNil(t, m.Club)

	// Assigning again promotes the existing row instead of creating one.
	m, created, err = svc.AssignHead(ctx, admin, clubID, userID)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.RoleHead, m.Role)
	assert.NotNil(t, m.User)
	assert.NotNil(t, m.Club)

	count, err := bunDB.NewSelect().
		Model((*models.ClubMember)(nil)).
		Where("club_id = ?", clubID).
		Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	// Heads cannot appoint other heads.
	_, _, err = svc.AssignHead(ctx, &auth.Identity{UserID: userID}, clubID, insertStudent(t, bunDB))
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestPromoteExistingMemberToHead(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	userID := insertStudent(t, bunDB)

	_, err := svc.AddMember(ctx, admin, clubID, userID, models.RoleMember)
	assert.NoError(t, err)

	m, created, err := svc.AssignHead(ctx, admin, clubID, userID)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.RoleHead, m.Role)
}

func TestRemoveMember(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	userID := insertStudent(t, bunDB)

	m, err := svc.AddMember(ctx, admin, clubID, userID, "")
	assert.NoError(t, err)

	// A plain member cannot remove memberships.
	err = svc.RemoveMember(ctx, &auth.Identity{UserID: userID}, m.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	assert.NoError(t, svc.RemoveMember(ctx, admin, m.ID))
	assert.ErrorIs(t, svc.RemoveMember(ctx, admin, m.ID), membership.ErrMembershipNotFound)
}

func TestChangeRole(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	userID := insertStudent(t, bunDB)

	m, err := svc.AddMember(ctx, admin, clubID, userID, "")
	assert.NoError(t, err)

	changed, err := svc.ChangeRole(ctx, admin, m.ID, models.RoleHead)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleHead, changed.Role)

	_, err = svc.ChangeRole(ctx, admin, m.ID, "owner")
	assert.ErrorIs(t, err, membership.ErrInvalidRole)
}

func TestListUserMembershipsScope(t *testing.T) {
	svc, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	clubA := insertClub(t, bunDB)
	clubB := insertClub(t, bunDB)
	headID := insertStudent(t, bunDB)
	userID := insertStudent(t, bunDB)

	_, _, err := svc.AssignHead(ctx, admin, clubA, headID)
	assert.NoError(t, err)
	_, err = svc.AddMember(ctx, admin, clubA, userID, "")
	assert.NoError(t, err)
	_, err = svc.AddMember(ctx, admin, clubB, userID, "")
	assert.NoError(t, err)

	// Admins and the user see everything.
	all, err := svc.ListUserMemberships(ctx, admin, userID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(all))

	own, err := svc.ListUserMemberships(ctx, &auth.Identity{UserID: userID}, userID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(own))

	// A head of club A only sees the user's club A membership.
	scoped, err := svc.ListUserMemberships(ctx, &auth.Identity{UserID: headID}, userID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(scoped))
	assert.Equal(t, clubA, scoped[0].ClubID)
}
