package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"
)

// PostgresWeights persists one weight vector per mandate, guarded by a
// monotonically increasing version.
type PostgresWeights struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresWeights(db *sql.DB, log logger.Logger) *PostgresWeights {
	return &PostgresWeights{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres_weights"}),
		now:    time.Now,
	}
}

func (p *PostgresWeights) GetWeights(ctx context.Context, mandateID string) (*models.WeightsRecord, bool, error) {
	var raw []byte
	var through sql.NullTime
	rec := models.WeightsRecord{MandateID: mandateID}

	err := p.db.QueryRowContext(ctx, `
		SELECT weights, version, signals_through, updated_at
		FROM mandate_weights
		WHERE mandate_id = $1`, mandateID).Scan(&raw, &rec.Version, &through, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, queryError(ctx, "weights", err)
	}

	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, apperrors.NewQueryExecutionFailedError("weights", fmt.Errorf("decode weights: %w", err))
	}
	w, err := models.WeightsFromMap(m)
	if err != nil {
		return nil, false, apperrors.NewQueryExecutionFailedError("weights", err)
	}
	rec.Weights = w
	if through.Valid {
		rec.SignalsThrough = through.Time
	}
	return &rec, true, nil
}

// SetWeights upserts rec when the stored version equals expectedVersion.
// A first write expects version 0.
func (p *PostgresWeights) SetWeights(ctx context.Context, rec models.WeightsRecord, expectedVersion int64) (*models.WeightsRecord, error) {
	if err := rec.Weights.Validate(); err != nil {
		return nil, apperrors.NewWeightPersistFailedError(rec.MandateID, err)
	}
	raw, err := json.Marshal(rec.Weights.ToMap())
	if err != nil {
		return nil, apperrors.NewWeightPersistFailedError(rec.MandateID, err)
	}

	var through interface{}
	if !rec.SignalsThrough.IsZero() {
		through = rec.SignalsThrough
	}

	out := rec
	out.Version = expectedVersion + 1
	out.UpdatedAt = p.now().UTC()

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO mandate_weights (mandate_id, weights, version, signals_through, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mandate_id) DO UPDATE
		SET weights = EXCLUDED.weights,
		    version = EXCLUDED.version,
		    signals_through = EXCLUDED.signals_through,
		    updated_at = EXCLUDED.updated_at
		WHERE mandate_weights.version = $6`,
		rec.MandateID, raw, out.Version, through, out.UpdatedAt, expectedVersion)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewWeightPersistFailedError(rec.MandateID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.NewWeightPersistFailedError(rec.MandateID, err)
	}
	if affected == 0 {
		return nil, apperrors.NewWeightVersionConflictError(rec.MandateID, expectedVersion)
	}

	p.logger.Info("weights persisted", map[string]interface{}{
		"mandateId": rec.MandateID,
		"version":   out.Version,
	})
	return &out, nil
}
