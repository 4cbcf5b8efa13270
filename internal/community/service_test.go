package community_test

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
	"ms-clubs/internal/community"
	"ms-clubs/internal/community/db"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/models"
)

type noHeads struct{}

func (noHeads) IsHead(ctx context.Context, userID, clubID string) (bool, error) {
	return false, nil
}

// ticketHolders fakes the ticketing engine lookup.
type ticketHolders map[string]bool

func (h ticketHolders) HasTicket(ctx context.Context, studentID, eventID string) (bool, error) {
	return h[studentID+"|"+eventID], nil
}

func setupService(t *testing.T, tickets community.TicketChecker) (*community.Service, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Student)(nil),
		(*models.Club)(nil),
		(*models.Subscription)(nil),
		(*models.Event)(nil),
		(*models.EventReview)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	svc := community.NewService(&db.DB{Bun: bunDB}, tickets, authz.NewAuthorizer(noHeads{}), logger.NewLogger())
	return svc, bunDB
}

var admin = &auth.Identity{UserID: "admin-1", IsAdmin: true}

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

func insertEvent(t *testing.T, bunDB *bun.DB, clubID string) string {
	event := models.Event{
		ID:           uuid.NewString(),
		Title:        "Hack Night",
		ClubID:       clubID,
		StartDate:    time.Now().Add(-4 * time.Hour),
		EndDate:      time.Now().Add(-2 * time.Hour),
		TicketType:   models.TicketTypeFree,
		TotalTickets: 50,
		CreatedAt:    time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(context.Background())
	assert.NoError(t, err)
	return event.ID
}

func TestSubscribe(t *testing.T) {
	svc, bunDB := setupService(t, ticketHolders{})
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	caller := &auth.Identity{UserID: "student-1"}

	sub, err := svc.Subscribe(ctx, caller, clubID, "")
	assert.NoError(t, err)
	assert.Equal(t, "student-1", sub.UserID)

	_, err = svc.Subscribe(ctx, caller, clubID, "")
	assert.ErrorIs(t, err, community.ErrDuplicateSubscription)

	_, err = svc.Subscribe(ctx, caller, "missing", "")
	assert.ErrorIs(t, err, community.ErrClubNotFound)

	// Subscribing someone else is an administrator move.
	_, err = svc.Subscribe(ctx, caller, clubID, "student-2")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	other, err := svc.Subscribe(ctx, admin, clubID, "student-2")
	assert.NoError(t, err)
	assert.Equal(t, "student-2", other.UserID)
}

func TestUnsubscribe(t *testing.T) {
	svc, bunDB := setupService(t, ticketHolders{})
	defer bunDB.Close()
	ctx := context.Background()

	clubID := insertClub(t, bunDB)
	caller := &auth.Identity{UserID: "student-1"}

	sub, err := svc.Subscribe(ctx, caller, clubID, "")
	assert.NoError(t, err)

	err = svc.Unsubscribe(ctx, &auth.Identity{UserID: "stranger"}, sub.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	assert.NoError(t, svc.Unsubscribe(ctx, caller, sub.ID))
	assert.ErrorIs(t, svc.Unsubscribe(ctx, caller, sub.ID), community.ErrSubscriptionNotFound)
}

func TestCreateReviewRequiresTicket(t *testing.T) {
	holders := ticketHolders{}
	svc, bunDB := setupService(t, holders)
	defer bunDB.Close()
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, insertClub(t, bunDB))
	caller := &auth.Identity{UserID: "student-1"}
	req := &models.ReviewRequest{Rating: 4, Comment: "great talk"}

	_, err := svc.CreateReview(ctx, caller, eventID, req)
	assert.ErrorIs(t, err, community.ErrTicketRequired)

	holders["student-1|"+eventID] = true
	review, err := svc.CreateReview(ctx, caller, eventID, req)
	assert.NoError(t, err)
	assert.Equal(t, 4, review.Rating)

	_, err = svc.CreateReview(ctx, caller, eventID, req)
	assert.ErrorIs(t, err, community.ErrDuplicateReview)
}

func TestCreateReviewValidation(t *testing.T) {
	svc, bunDB := setupService(t, ticketHolders{})
	defer bunDB.Close()
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, insertClub(t, bunDB))
	caller := &auth.Identity{UserID: "student-1"}

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.CreateReview(ctx, caller, eventID, &models.ReviewRequest{Rating: rating})
		assert.ErrorIs(t, err, community.ErrValidation)
	}

	_, err := svc.CreateReview(ctx, caller, "missing", &models.ReviewRequest{Rating: 3})
	assert.ErrorIs(t, err, community.ErrEventNotFound)
}

func TestUpdateAndDeleteReview(t *testing.T) {
	holders := ticketHolders{}
	svc, bunDB := setupService(t, holders)
	defer bunDB.Close()
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, insertClub(t, bunDB))
	caller := &auth.Identity{UserID: "student-1"}
	holders["student-1|"+eventID] = true

	review, err := svc.CreateReview(ctx, caller, eventID, &models.ReviewRequest{Rating: 3})
	assert.NoError(t, err)

	updated, err := svc.UpdateReview(ctx, caller, review.ID, &models.ReviewRequest{Rating: 5, Comment: "even better"})
	assert.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)

	_, err = svc.UpdateReview(ctx, caller, review.ID, &models.ReviewRequest{Rating: 9})
	assert.ErrorIs(t, err, community.ErrValidation)

	// Only the author, an admin or the club's head can delete.
	err = svc.DeleteReview(ctx, &auth.Identity{UserID: "stranger"}, review.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	assert.NoError(t, svc.DeleteReview(ctx, caller, review.ID))
	assert.ErrorIs(t, svc.DeleteReview(ctx, caller, review.ID), community.ErrReviewNotFound)
}

func TestListEventReviews(t *testing.T) {
	holders := ticketHolders{}
	svc, bunDB := setupService(t, holders)
	defer bunDB.Close()
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, insertClub(t, bunDB))
	for _, id := range []string{"s1", "s2"} {
		holders[id+"|"+eventID] = true
		_, err := svc.CreateReview(ctx, &auth.Identity{UserID: id}, eventID, &models.ReviewRequest{Rating: 4})
		assert.NoError(t, err)
	}

	reviews, err := svc.ListEventReviews(ctx, eventID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(reviews))

	_, err = svc.ListEventReviews(ctx, "missing")
	assert.ErrorIs(t, err, community.ErrEventNotFound)
}
