package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"

	"github.com/lib/pq"
)

const companyColumns = `id, legal_name, display_name, COALESCE(website, ''), COALESCE(country, ''),
	COALESCE(industry, ''), COALESCE(ownership_type, ''), latest_revenue_eur, employees`

// PostgresCandidates reads candidate companies from the companies table.
type PostgresCandidates struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresCandidates(db *sql.DB, log logger.Logger) *PostgresCandidates {
	return &PostgresCandidates{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres_candidates"}),
	}
}

// FetchCandidates returns at most PageSize companies ordered by id. One extra
// row is read to report HasMore.
func (p *PostgresCandidates) FetchCandidates(ctx context.Context, q CandidateQuery) (*CandidateBatch, error) {
	pageSize := EffectivePageSize(q.PageSize)
	query, args := buildCandidateQuery(q, pageSize+1)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, "candidates", err)
	}
	companies, err := scanCompanies(rows)
	if err != nil {
		return nil, queryError(ctx, "candidates", err)
	}

	batch := &CandidateBatch{Companies: companies}
	if len(companies) > pageSize {
		batch.Companies = companies[:pageSize]
		batch.HasMore = true
	}

	if q.IncludeContacts && len(batch.Companies) > 0 {
		if err := p.attachContacts(ctx, batch.Companies); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("candidates fetched", map[string]interface{}{
		"count":   len(batch.Companies),
		"hasMore": batch.HasMore,
	})
	return batch, nil
}

func (p *PostgresCandidates) GetCompanies(ctx context.Context, ids []string) (map[string]models.Company, error) {
	out := make(map[string]models.Company, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, queryError(ctx, "companies_by_id", err)
	}
	companies, err := scanCompanies(rows)
	if err != nil {
		return nil, queryError(ctx, "companies_by_id", err)
	}

	for _, c := range companies {
		out[c.ID] = c
	}
	return out, nil
}

func (p *PostgresCandidates) attachContacts(ctx context.Context, companies []models.Company) error {
	ids := make([]string, len(companies))
	index := make(map[string]int, len(companies))
	for i, c := range companies {
		ids[i] = c.ID
		index[c.ID] = i
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT company_id, id, name, role, COALESCE(email, '')
		FROM company_contacts
		WHERE company_id = ANY($1)
		ORDER BY company_id, id`, pq.Array(ids))
	if err != nil {
		return queryError(ctx, "contacts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var companyID string
		var c models.Contact
		if err := rows.Scan(&companyID, &c.ID, &c.Name, &c.Role, &c.Email); err != nil {
			return queryError(ctx, "contacts", err)
		}
		if i, ok := index[companyID]; ok {
			companies[i].Contacts = append(companies[i].Contacts, c)
		}
	}
	if err := rows.Err(); err != nil {
		return queryError(ctx, "contacts", err)
	}
	return nil
}

func buildCandidateQuery(q CandidateQuery, limit int) (string, []interface{}) {
	var where []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if len(q.Countries) > 0 {
		add("upper(country) = ANY($%d)", pq.Array(mapStrings(q.Countries, strings.ToUpper)))
	}
	if len(q.ExcludeCountries) > 0 {
		add("(country IS NULL OR upper(country) <> ALL($%d))", pq.Array(mapStrings(q.ExcludeCountries, strings.ToUpper)))
	}
	if len(q.Industries) > 0 {
		add("lower(industry) = ANY($%d)", pq.Array(mapStrings(q.Industries, strings.ToLower)))
	}
	if len(q.Ownership) > 0 {
		add("lower(ownership_type) = ANY($%d)", pq.Array(mapStrings(q.Ownership, strings.ToLower)))
	}
	if q.RevenueMin != nil {
		add("latest_revenue_eur >= $%d", *q.RevenueMin)
	}
	if q.RevenueMax != nil {
		add("latest_revenue_eur <= $%d", *q.RevenueMax)
	}
	if q.EmployeesMin != nil {
		add("employees >= $%d", *q.EmployeesMin)
	}
	if q.EmployeesMax != nil {
		add("employees <= $%d", *q.EmployeesMax)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		add("(legal_name ILIKE $%[1]d OR display_name ILIKE $%[1]d)", "%"+escapeLike(text)+"%")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(companyColumns)
	sb.WriteString(" FROM companies")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY id LIMIT $%d", len(args))

	return sb.String(), args
}

func scanCompanies(rows *sql.Rows) ([]models.Company, error) {
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		var revenue sql.NullFloat64
		var employees sql.NullInt64
		if err := rows.Scan(&c.ID, &c.LegalName, &c.DisplayName, &c.Website, &c.Country,
			&c.Industry, &c.OwnershipType, &revenue, &employees); err != nil {
			return nil, err
		}
		if revenue.Valid {
			v := revenue.Float64
			c.LatestRevenueEUR = &v
		}
		if employees.Valid {
			v := int(employees.Int64)
			c.Employees = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// queryError keeps caller cancellation visible and wraps everything else.
func queryError(ctx context.Context, queryType string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperrors.NewQueryExecutionFailedError(queryType, err)
}

func mapStrings(values []string, fn func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, fn(v))
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
