package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"
)

// PostgresMandates resolves a mandate's effective criteria: its own criteria
// with attached DNA segments folded in by position.
type PostgresMandates struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresMandates(db *sql.DB, log logger.Logger) *PostgresMandates {
	return &PostgresMandates{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres_mandates"}),
	}
}

func (p *PostgresMandates) GetCriteria(ctx context.Context, mandateID string) (models.Criteria, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT criteria FROM mandates WHERE id = $1 AND NOT archived`, mandateID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Criteria{}, apperrors.NewMandateNotFoundError(mandateID)
	}
	if err != nil {
		return models.Criteria{}, queryError(ctx, "mandate_criteria", err)
	}

	criteria, err := decodeCriteria(raw)
	if err != nil {
		return models.Criteria{}, apperrors.NewInvalidCriteriaError(fmt.Sprintf("mandate %s: %v", mandateID, err))
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.criteria
		FROM mandate_segments ms
		JOIN dna_segments s ON s.id = ms.segment_id
		WHERE ms.mandate_id = $1
		ORDER BY ms.position, s.id`, mandateID)
	if err != nil {
		return models.Criteria{}, queryError(ctx, "mandate_segments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var segmentID string
		var segRaw []byte
		if err := rows.Scan(&segmentID, &segRaw); err != nil {
			return models.Criteria{}, queryError(ctx, "mandate_segments", err)
		}
		segment, err := decodeCriteria(segRaw)
		if err != nil {
			p.logger.Warn("skipping undecodable segment", map[string]interface{}{
				"mandateId": mandateID,
				"segmentId": segmentID,
				"error":     err.Error(),
			})
			continue
		}
		criteria = criteria.Merge(segment)
	}
	if err := rows.Err(); err != nil {
		return models.Criteria{}, queryError(ctx, "mandate_segments", err)
	}

	return criteria.Normalize(), nil
}

// ListMandateIDs returns every active mandate.
func (p *PostgresMandates) ListMandateIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM mandates WHERE NOT archived ORDER BY id`)
	if err != nil {
		return nil, queryError(ctx, "mandate_ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, queryError(ctx, "mandate_ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "mandate_ids", err)
	}
	return ids, nil
}

func decodeCriteria(raw []byte) (models.Criteria, error) {
	var c models.Criteria
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Criteria{}, err
	}
	return c, nil
}
