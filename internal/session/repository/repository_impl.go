package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/irriflow/pkg/db"
	"gorm.io/gorm"

	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
)

type repo struct{}

func Provide() sessiondomain.Repository {
	return &repo{}
}

// CreateActive relies on the unique active-session index on pump_id. The
// insert and the exclusivity check are a single statement, so concurrent
// starts on the same pump cannot both succeed.
func (r *repo) CreateActive(ctx context.Context, tx *gorm.DB, session *sessiondomain.UsageSession) error {
	session.Status = sessiondomain.StatusActive
	if err := tx.WithContext(ctx).Create(session).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return sessiondomain.ErrPumpBusy
		}
		return err
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*sessiondomain.UsageSession, error) {
	var session sessiondomain.UsageSession
	err := tx.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) FindActiveByPump(ctx context.Context, tx *gorm.DB, pumpID snowflake.ID) (*sessiondomain.UsageSession, error) {
	var session sessiondomain.UsageSession
	err := tx.WithContext(ctx).
		Where("pump_id = ? AND status = ?", pumpID, sessiondomain.StatusActive).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) UpdateConsumption(ctx context.Context, tx *gorm.DB, id snowflake.ID, consumed, cost decimal.Decimal, at time.Time) error {
	res := tx.WithContext(ctx).
		Model(&sessiondomain.UsageSession{}).
		Where("id = ? AND status = ?", id, sessiondomain.StatusActive).
		Updates(map[string]any{
			"actual_kwh": consumed,
			"cost":       cost,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessiondomain.ErrSessionNotActive
	}
	return nil
}

func (r *repo) Close(ctx context.Context, tx *gorm.DB, id snowflake.ID, status sessiondomain.Status, endedAt time.Time, finalKwh, cost *decimal.Decimal) error {
	if !status.Terminal() {
		return sessiondomain.ErrSessionNotActive
	}
	values := map[string]any{
		"status":     status,
		"ended_at":   endedAt,
		"updated_at": endedAt,
	}
	if finalKwh != nil {
		values["actual_kwh"] = *finalKwh
	}
	if cost != nil {
		values["cost"] = *cost
	}
	res := tx.WithContext(ctx).
		Model(&sessiondomain.UsageSession{}).
		Where("id = ? AND status = ?", id, sessiondomain.StatusActive).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessiondomain.ErrSessionNotActive
	}
	return nil
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, limit int) ([]sessiondomain.UsageSession, error) {
	var sessions []sessiondomain.UsageSession
	q := tx.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repo) ListByUser(ctx context.Context, tx *gorm.DB, userID snowflake.ID, limit int) ([]sessiondomain.UsageSession, error) {
	var sessions []sessiondomain.UsageSession
	q := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
