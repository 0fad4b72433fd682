package store

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var companyCols = []string{"id", "legal_name", "display_name", "website", "country", "industry", "ownership_type", "latest_revenue_eur", "employees"}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestBuildCandidateQuery(t *testing.T) {
	q := CandidateQuery{
		Countries:        []string{"nl"},
		ExcludeCountries: []string{"ru"},
		Industries:       []string{"SaaS"},
		RevenueMin:       floatPtr(1_000_000),
		Text:             "acme_co",
	}

	query, args := buildCandidateQuery(q, 101)

	assert.Contains(t, query, "upper(country) = ANY($1)")
	assert.Contains(t, query, "(country IS NULL OR upper(country) <> ALL($2))")
	assert.Contains(t, query, "lower(industry) = ANY($3)")
	assert.Contains(t, query, "latest_revenue_eur >= $4")
	assert.Contains(t, query, "(legal_name ILIKE $5 OR display_name ILIKE $5)")
	assert.True(t, regexp.MustCompile(`ORDER BY id LIMIT \$6$`).MatchString(query), query)

	require.Len(t, args, 6)
	assert.Equal(t, pq.Array([]string{"NL"}), args[0])
	assert.Equal(t, pq.Array([]string{"RU"}), args[1])
	assert.Equal(t, pq.Array([]string{"saas"}), args[2])
	assert.Equal(t, 1_000_000.0, args[3])
	assert.Equal(t, `%acme\_co%`, args[4])
	assert.Equal(t, 101, args[5])
}

func TestBuildCandidateQuery_NoFilters(t *testing.T) {
	query, args := buildCandidateQuery(CandidateQuery{}, 11)

	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []interface{}{11}, args)
}

func TestPostgresCandidates_FetchReportsHasMore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM companies ORDER BY id LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(companyCols).
			AddRow("c-1", "Acme SaaS BV", "Acme", "acme.nl", "NL", "SaaS", "founder-led", 5_000_000.0, 40).
			AddRow("c-2", "Beta GmbH", "Beta", "", "DE", "Fintech", "PE-backed", nil, nil).
			AddRow("c-3", "Gamma SA", "Gamma", "", "FR", "SaaS", "public", 1.0, 2))

	src := NewPostgresCandidates(db, logger.NewTestLogger(t))
	batch, err := src.FetchCandidates(context.Background(), CandidateQuery{PageSize: 2})
	require.NoError(t, err)

	require.Len(t, batch.Companies, 2)
	assert.True(t, batch.HasMore)
	assert.Equal(t, 5_000_000.0, *batch.Companies[0].LatestRevenueEUR)
	assert.Equal(t, 40, *batch.Companies[0].Employees)
	assert.Nil(t, batch.Companies[1].LatestRevenueEUR)
	assert.Nil(t, batch.Companies[1].Employees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCandidates_AttachesContacts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM companies WHERE upper\(country\) = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg(), 101).
		WillReturnRows(sqlmock.NewRows(companyCols).
			AddRow("c-1", "Acme SaaS BV", "Acme", "", "NL", "SaaS", "founder-led", nil, nil))
	mock.ExpectQuery(`FROM company_contacts`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "id", "name", "role", "email"}).
			AddRow("c-1", "p-1", "Jan", "CEO", "jan@acme.nl").
			AddRow("c-1", "p-2", "Eva", "CFO", ""))

	src := NewPostgresCandidates(db, logger.NewTestLogger(t))
	batch, err := src.FetchCandidates(context.Background(), CandidateQuery{
		Countries:       []string{"NL"},
		IncludeContacts: true,
	})
	require.NoError(t, err)

	require.Len(t, batch.Companies, 1)
	assert.False(t, batch.HasMore)
	require.Len(t, batch.Companies[0].Contacts, 2)
	assert.Equal(t, "CEO", batch.Companies[0].Contacts[0].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCandidates_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM companies`).WillReturnError(errors.New("connection refused"))

	src := NewPostgresCandidates(db, logger.NewTestLogger(t))
	_, err = src.FetchCandidates(context.Background(), CandidateQuery{})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeQueryExecutionFailed))
}

func TestPostgresCandidates_GetCompanies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM companies WHERE id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(companyCols).
			AddRow("c-2", "Beta GmbH", "Beta", "", "DE", "Fintech", "PE-backed", nil, nil))

	src := NewPostgresCandidates(db, logger.NewTestLogger(t))
	got, err := src.GetCompanies(context.Background(), []string{"c-2", "c-missing"})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, "DE", got["c-2"].Country)
	_, ok := got["c-missing"]
	assert.False(t, ok)
}

var weightCols = []string{"weights", "version", "signals_through", "updated_at"}

func TestPostgresWeights_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM mandate_weights`).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(weightCols))

	store := NewPostgresWeights(db, logger.NewTestLogger(t))
	rec, found, err := store.GetWeights(context.Background(), "m-1")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
}

func TestPostgresWeights_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	through := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM mandate_weights`).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(weightCols).AddRow(
			[]byte(`{"sector":0.4,"geo":0.2,"size":0.2,"owner":0.1,"keywords":0.1}`),
			int64(3), through, through))

	store := NewPostgresWeights(db, logger.NewTestLogger(t))
	rec, found, err := store.GetWeights(context.Background(), "m-1")

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.4, rec.Weights.Sector)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, through, rec.SignalsThrough)
}

func TestPostgresWeights_SetBumpsVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO mandate_weights .+ WHERE mandate_weights.version = \$6`).
		WithArgs("m-1", sqlmock.AnyArg(), int64(4), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresWeights(db, logger.NewTestLogger(t))
	rec, err := store.SetWeights(context.Background(), models.WeightsRecord{
		MandateID: "m-1",
		Weights:   models.DefaultWeights(),
	}, 3)

	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Version)
	assert.False(t, rec.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWeights_SetVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO mandate_weights`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPostgresWeights(db, logger.NewTestLogger(t))
	_, err = store.SetWeights(context.Background(), models.WeightsRecord{
		MandateID: "m-1",
		Weights:   models.DefaultWeights(),
	}, 0)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWeightVersionConflict))
}

func TestPostgresWeights_SetRejectsInvalidVector(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresWeights(db, logger.NewTestLogger(t))
	_, err = store.SetWeights(context.Background(), models.WeightsRecord{
		MandateID: "m-1",
		Weights:   models.Weights{Sector: -1},
	}, 0)

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWeightPersistFailed))
}

func TestPostgresSignals_AppendAppliesDefaultWeight(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO learning_signals`).
		WithArgs("sig-1", "m-1", "c-1", "meeting", 4.0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := NewPostgresSignals(db, logger.NewTestLogger(t))
	log.now = func() time.Time { return now }
	log.newID = func() string { return "sig-1" }

	s, err := log.AppendSignal(context.Background(), models.Signal{
		MandateID: "m-1",
		CompanyID: "c-1",
		Type:      models.SignalMeeting,
	})
	require.NoError(t, err)

	assert.Equal(t, "sig-1", s.ID)
	assert.Equal(t, 4.0, s.Weight)
	assert.Equal(t, now, s.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSignals_AppendRejectsUnknownType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewPostgresSignals(db, logger.NewTestLogger(t))
	_, err = log.AppendSignal(context.Background(), models.Signal{
		MandateID: "m-1",
		CompanyID: "c-1",
		Type:      "like",
	})

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMalformedSignal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSignals_ListAppliesFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM learning_signals WHERE mandate_id = $1 AND signal = ANY($2) AND created_at > $3 ORDER BY created_at, id`)).
		WithArgs("m-1", sqlmock.AnyArg(), since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mandate_id", "company_id", "signal", "weight", "created_at"}).
			AddRow("s-1", "m-1", "c-1", "favorite", 1.0, since.Add(time.Hour)).
			AddRow("s-2", "m-1", "c-2", "reject", nil, since.Add(2*time.Hour)))

	log := NewPostgresSignals(db, logger.NewTestLogger(t))
	signals, err := log.ListSignals(context.Background(), SignalFilter{
		MandateID: "m-1",
		Types:     []models.SignalType{models.SignalFavorite, models.SignalReject},
		Since:     since,
	})
	require.NoError(t, err)

	require.Len(t, signals, 2)
	assert.Equal(t, models.SignalFavorite, signals[0].Type)
	assert.Equal(t, 1.0, signals[0].Weight)
	assert.True(t, math.IsNaN(signals[1].Weight))
	assert.Error(t, signals[1].Validate())
}

func TestPostgresMandates_GetCriteriaMergesSegments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT criteria FROM mandates`).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"criteria"}).
			AddRow([]byte(`{"geographyAllow":["nl"],"revenueMin":1000}`)))
	mock.ExpectQuery(`FROM mandate_segments`).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "criteria"}).
			AddRow("seg-1", []byte(`{"geographyAllow":["DE","NL"],"industryAllow":["SaaS"],"revenueMin":5}`)).
			AddRow("seg-2", []byte(`not json`)))

	repo := NewPostgresMandates(db, logger.NewTestLogger(t))
	c, err := repo.GetCriteria(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"NL", "DE"}, c.GeographyAllow)
	assert.Equal(t, []string{"SaaS"}, c.IndustryAllow)
	assert.Equal(t, 1000.0, *c.RevenueMin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMandates_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT criteria FROM mandates`).
		WithArgs("m-404").
		WillReturnRows(sqlmock.NewRows([]string{"criteria"}))

	repo := NewPostgresMandates(db, logger.NewTestLogger(t))
	_, err = repo.GetCriteria(context.Background(), "m-404")

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMandateNotFound))
}

func TestPostgresMandates_ListMandateIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM mandates WHERE NOT archived`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m-1").AddRow("m-2"))

	repo := NewPostgresMandates(db, logger.NewTestLogger(t))
	ids, err := repo.ListMandateIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"m-1", "m-2"}, ids)
}

func TestEffectivePageSize(t *testing.T) {
	assert.Equal(t, 100, EffectivePageSize(0))
	assert.Equal(t, 100, EffectivePageSize(-5))
	assert.Equal(t, 25, EffectivePageSize(25))
	assert.Equal(t, 100, EffectivePageSize(1000))
}
