package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
)

var ErrUserNotFound = dberror.ErrNotFound.Msg("user not found")

func (cm *connectionManager) GetUser(ctx context.Context, id int64) (*models.User, apperrors.Error) {
	var u models.User
	err := cm.conn().GetContext(ctx, &u, "SELECT id, email, name, company, role, created_at FROM users WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.Ctx(ctx).Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return &u, nil
}
