package postgresql

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
)

var ErrNotificationNotFound = dberror.ErrNotFound.Msg("notification not found")

const notificationColumns = "id, user_id, type, icon, color, brand_id, brand_name, message, read, created_at"

// CreateNotification inserts n as unread for n.UserID.
func (nm *notificationManager) CreateNotification(ctx context.Context, n *models.Notification) apperrors.Error {
	query := `
		INSERT INTO notifications (user_id, type, icon, color, brand_id, brand_name, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + notificationColumns
	err := nm.conn().GetContext(ctx, n, query, n.UserID, n.Type, n.Icon, n.Color, n.BrandID, n.BrandName, n.Message)
	if err != nil {
		if dberror.IsForeignKeyViolation(err) {
			return dberror.ErrInvalidReference.Msg("user or brand not found")
		}
		log.Ctx(ctx).Error().Err(err).Int64("user_id", n.UserID).Msg("failed to create notification")
		return dberror.FromPg(err)
	}
	return nil
}

// CreateNotificationForRole inserts a copy of n for every user with role and returns the inserted rows.
func (nm *notificationManager) CreateNotificationForRole(ctx context.Context, role string, n *models.Notification) ([]models.Notification, apperrors.Error) {
	query := `
		INSERT INTO notifications (user_id, type, icon, color, brand_id, brand_name, message)
		SELECT u.id, $2, $3, $4, $5, $6, $7 FROM users u WHERE u.role = $1
		RETURNING ` + notificationColumns
	rows := []models.Notification{}
	err := nm.conn().SelectContext(ctx, &rows, query, role, n.Type, n.Icon, n.Color, n.BrandID, n.BrandName, n.Message)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("role", role).Msg("failed to fan out notification")
		return nil, dberror.FromPg(err)
	}
	return rows, nil
}

// ListNotifications returns one page of the scoped user's notifications, newest first, and their total.
func (nm *notificationManager) ListNotifications(ctx context.Context, page, limit int64) ([]models.Notification, int64, apperrors.Error) {
	userID, err := nm.scopedUser(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if errDb := nm.conn().GetContext(ctx, &total, "SELECT count(*) FROM notifications WHERE user_id = $1", userID); errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to count notifications")
		return nil, 0, dberror.ErrDatabase.Err(errDb)
	}
	rows := []models.Notification{}
	errDb := nm.conn().SelectContext(ctx, &rows,
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		userID, limit, offset(page, limit))
	if errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to list notifications")
		return nil, 0, dberror.ErrDatabase.Err(errDb)
	}
	return rows, total, nil
}

func (nm *notificationManager) UnreadCount(ctx context.Context) (int64, apperrors.Error) {
	userID, err := nm.scopedUser(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if errDb := nm.conn().GetContext(ctx, &n,
		"SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read", userID); errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to count unread notifications")
		return 0, dberror.ErrDatabase.Err(errDb)
	}
	return n, nil
}

// MarkRead marks one of the scoped user's notifications as read.
func (nm *notificationManager) MarkRead(ctx context.Context, id int64) apperrors.Error {
	userID, err := nm.scopedUser(ctx)
	if err != nil {
		return err
	}
	res, errDb := nm.conn().ExecContext(ctx, "UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2", id, userID)
	if errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Int64("notification_id", id).Msg("failed to mark notification read")
		return dberror.ErrDatabase.Err(errDb)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every notification of the scoped user as read and returns how many changed.
func (nm *notificationManager) MarkAllRead(ctx context.Context) (int64, apperrors.Error) {
	userID, err := nm.scopedUser(ctx)
	if err != nil {
		return 0, err
	}
	res, errDb := nm.conn().ExecContext(ctx, "UPDATE notifications SET read = true WHERE user_id = $1 AND NOT read", userID)
	if errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to mark notifications read")
		return 0, dberror.ErrDatabase.Err(errDb)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
