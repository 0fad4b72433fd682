package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresSignals is the append-only learning signal log.
type PostgresSignals struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewPostgresSignals(db *sql.DB, log logger.Logger) *PostgresSignals {
	return &PostgresSignals{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres_signals"}),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// AppendSignal records s. A zero weight takes the signal type's default.
func (p *PostgresSignals) AppendSignal(ctx context.Context, s models.Signal) (*models.Signal, error) {
	if s.Weight == 0 && s.Type.Valid() {
		s.Weight = float64(s.Type.DefaultWeight())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.ID == "" {
		s.ID = p.newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = p.now().UTC()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO learning_signals (id, mandate_id, company_id, signal, weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.MandateID, s.CompanyID, string(s.Type), s.Weight, s.CreatedAt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewSignalPersistFailedError(err)
	}

	p.logger.Debug("signal recorded", map[string]interface{}{
		"signalId":  s.ID,
		"mandateId": s.MandateID,
		"signal":    s.Type,
	})
	return &s, nil
}

// ListSignals returns signals oldest first. Rows with a NULL weight come
// back with a NaN weight so callers can skip them as malformed.
func (p *PostgresSignals) ListSignals(ctx context.Context, f SignalFilter) ([]models.Signal, error) {
	var where []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.MandateID != "" {
		add("mandate_id = $%d", f.MandateID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("signal = ANY($%d)", pq.Array(types))
	}
	if !f.Since.IsZero() {
		add("created_at > $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <= $%d", f.Until)
	}

	query := `SELECT id, mandate_id, company_id, signal, weight, created_at FROM learning_signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, "signals", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var s models.Signal
		var signalType string
		var weight sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.MandateID, &s.CompanyID, &signalType, &weight, &s.CreatedAt); err != nil {
			return nil, queryError(ctx, "signals", err)
		}
		s.Type = models.SignalType(signalType)
		s.Weight = math.NaN()
		if weight.Valid {
			s.Weight = weight.Float64
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "signals", err)
	}
	return out, nil
}
