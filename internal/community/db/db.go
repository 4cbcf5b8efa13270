package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-clubs/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetSubscription(ctx context.Context, userID, clubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := d.Bun.NewSelect().
		Model(&sub).
		Where("user_id = ?", userID).
		Where("club_id = ?", clubID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (d *DB) GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := d.Bun.NewSelect().
		Model(&sub).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (d *DB) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := d.Bun.NewInsert().Model(sub).Exec(ctx)
	return err
}

func (d *DB) DeleteSubscription(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Subscription)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListClubSubscribers(ctx context.Context, clubID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := d.Bun.NewSelect().
		Model(&subs).
		Relation("User").
		Where("club_id = ?", clubID).
		Order("subscribed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (d *DB) ListUserSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := d.Bun.NewSelect().
		Model(&subs).
		Relation("Club").
		Where("user_id = ?", userID).
		Order("subscribed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (d *DB) ClubExists(ctx context.Context, clubID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Club)(nil)).
		Where("id = ?", clubID).
		Exists(ctx)
}

func (d *DB) GetReview(ctx context.Context, id string) (*models.EventReview, error) {
	var review models.EventReview
	err := d.Bun.NewSelect().
		Model(&review).
		Relation("Event").
		Where("review.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (d *DB) ReviewExists(ctx context.Context, userID, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.EventReview)(nil)).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Exists(ctx)
}

func (d *DB) CreateReview(ctx context.Context, review *models.EventReview) error {
	_, err := d.Bun.NewInsert().Model(review).Exec(ctx)
	return err
}

func (d *DB) UpdateReview(ctx context.Context, review *models.EventReview) error {
	_, err := d.Bun.NewUpdate().
		Model(review).
		Column("rating", "comment").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) DeleteReview(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.EventReview)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListEventReviews(ctx context.Context, eventID string) ([]models.EventReview, error) {
	var reviews []models.EventReview
	err := d.Bun.NewSelect().
		Model(&reviews).
		Relation("User").
		Where("review.event_id = ?", eventID).
		Order("review.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("event.id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
