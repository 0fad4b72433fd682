package api

import (
	"context"
	"net/http"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/feedback"
	"mandate-matching/internal/matching"
	"mandate-matching/internal/models"
	"mandate-matching/internal/search"

	"github.com/labstack/echo/v4"
)

const HeaderCandidatesTruncated = "X-Candidates-Truncated"

type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

type Recomputer interface {
	RecomputeAll(ctx context.Context) (*feedback.Summary, error)
	RecomputeMandates(ctx context.Context, ids []string) (*feedback.Summary, error)
}

type SearchRequest struct {
	Query           string           `json:"query"`
	Criteria        *models.Criteria `json:"criteria"`
	PageSize        int              `json:"pageSize" validate:"gte=0"`
	IncludeContacts bool             `json:"includeContacts"`
}

type MatchResponse struct {
	ID            string                    `json:"id"`
	LegalName     string                    `json:"legalName"`
	DisplayName   string                    `json:"displayName"`
	Website       string                    `json:"website"`
	Country       string                    `json:"country"`
	Industry      string                    `json:"industry"`
	OwnershipType string                    `json:"ownershipType"`
	MatchScore    float64                   `json:"matchScore"`
	Explain       map[models.Factor]float64 `json:"explain"`
	Contacts      []models.Contact          `json:"contacts,omitempty"`
}

type SignalRequest struct {
	MandateID string `json:"mandateId" validate:"required"`
	CompanyID string `json:"companyId" validate:"required"`
	Signal    string `json:"signal" validate:"required,oneof=favorite reject request_match reply meeting bounce"`
	Weight    *int   `json:"weight" validate:"omitempty,ne=0"`
}

type RecomputeRequest struct {
	MandateID string `json:"mandateId"`
}

type WeightsResponse struct {
	MandateID      string             `json:"mandateId"`
	Weights        map[string]float64 `json:"weights"`
	Version        int64              `json:"version"`
	IsDefault      bool               `json:"isDefault"`
	SignalsThrough *time.Time         `json:"signalsThrough,omitempty"`
	UpdatedAt      *time.Time         `json:"updatedAt,omitempty"`
}

type SVIRequest struct {
	Press60d *int `json:"press60d" validate:"required,gte=0"`
	RFP60d   *int `json:"rfp60d" validate:"required,gte=0"`
}

// bindAndValidate decodes the body into req. Malformed JSON and failed
// validation are both bad input.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.NewInvalidInputError("malformed request body")
	}
	return c.Validate(req)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := s.deps.Searcher.Search(c.Request().Context(), search.Request{
		MandateID:       c.Param("id"),
		Criteria:        req.Criteria,
		Query:           req.Query,
		PageSize:        req.PageSize,
		IncludeContacts: req.IncludeContacts,
	})
	if err != nil {
		return err
	}

	out := make([]MatchResponse, 0, len(result.Matches))
	for _, m := range result.Matches {
		out = append(out, MatchResponse{
			ID:            m.Company.ID,
			LegalName:     m.Company.LegalName,
			DisplayName:   m.Company.DisplayName,
			Website:       m.Company.Website,
			Country:       m.Company.Country,
			Industry:      m.Company.Industry,
			OwnershipType: m.Company.OwnershipType,
			MatchScore:    m.MatchScore,
			Explain:       m.Explain,
			Contacts:      m.Company.Contacts,
		})
	}

	if result.HasMore {
		c.Response().Header().Set(HeaderCandidatesTruncated, "true")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleRecordSignal(c echo.Context) error {
	var req SignalRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	signal := models.Signal{
		MandateID: req.MandateID,
		CompanyID: req.CompanyID,
		Type:      models.SignalType(req.Signal),
	}
	if req.Weight != nil {
		signal.Weight = float64(*req.Weight)
	}

	saved, err := s.deps.Signals.AppendSignal(c.Request().Context(), signal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleRecompute(c echo.Context) error {
	var req RecomputeRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}

	ctx := c.Request().Context()
	var (
		summary *feedback.Summary
		err     error
	)
	if req.MandateID != "" {
		summary, err = s.deps.Recomputer.RecomputeMandates(ctx, []string{req.MandateID})
	} else {
		summary, err = s.deps.Recomputer.RecomputeAll(ctx)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleGetWeights(c echo.Context) error {
	mandateID := c.Param("id")
	rec, found, err := s.deps.Weights.GetWeights(c.Request().Context(), mandateID)
	if err != nil {
		return apperrors.NewDataUnavailableError("weights", err)
	}

	if !found {
		return c.JSON(http.StatusOK, WeightsResponse{
			MandateID: mandateID,
			Weights:   s.deps.DefaultWeights.ToMap(),
			IsDefault: true,
		})
	}

	resp := WeightsResponse{
		MandateID: mandateID,
		Weights:   rec.Weights.ToMap(),
		Version:   rec.Version,
		UpdatedAt: &rec.UpdatedAt,
	}
	if !rec.SignalsThrough.IsZero() {
		resp.SignalsThrough = &rec.SignalsThrough
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSVI(c echo.Context) error {
	var req SVIRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	result, err := matching.SignalValueIndex(matching.SVIInput{
		PressCount60d: *req.Press60d,
		RFPCount60d:   *req.RFP60d,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handlePricing(c echo.Context) error {
	var req matching.PricingInput
	if err := c.Bind(&req); err != nil {
		return apperrors.NewInvalidInputError("malformed request body")
	}
	result, err := matching.EvaluatePricing(req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady runs every dependency check; any failure makes the service
// not ready.
func (s *Server) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Checks))
	ready := true
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, label := http.StatusOK, "ready"
	if !ready {
		status, label = http.StatusServiceUnavailable, "not_ready"
	}
	return c.JSON(status, map[string]interface{}{"status": label, "checks": checks})
}
