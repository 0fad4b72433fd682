// internal/workers/matching/recompute-mandate-weights/handler_test.go
package recomputemandateweights

import (
	"context"
	"encoding/json"
	"testing"

	"mandate-matching/internal/common/camunda"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/feedback"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecomputer struct {
	mock.Mock
}

func (m *MockRecomputer) RecomputeAll(ctx context.Context) (*feedback.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feedback.Summary), args.Error(1)
}

func (m *MockRecomputer) RecomputeMandates(ctx context.Context, ids []string) (*feedback.Summary, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feedback.Summary), args.Error(1)
}

func newTestHandler(t *testing.T) (*Handler, *MockRecomputer) {
	rec := new(MockRecomputer)
	h, err := NewHandler(nil, rec, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h, rec
}

func TestHandler_Execute_SingleMandate(t *testing.T) {
	h, rec := newTestHandler(t)
	rec.On("RecomputeMandates", mock.Anything, []string{"m-1"}).
		Return(&feedback.Summary{Updated: 1}, nil)

	output, err := h.Execute(context.Background(), &Input{MandateID: "m-1"})

	require.NoError(t, err)
	assert.Equal(t, 1, output.Updated)
	assert.NotNil(t, output.Skipped)
	assert.NotNil(t, output.Failed)
	rec.AssertExpectations(t)
	rec.AssertNotCalled(t, "RecomputeAll", mock.Anything)
}

func TestHandler_Execute_AllMandates(t *testing.T) {
	h, rec := newTestHandler(t)
	rec.On("RecomputeAll", mock.Anything).Return(&feedback.Summary{
		Updated:   2,
		Unchanged: 1,
		Skipped:   []string{"m-3"},
		Failed:    []feedback.FailedMandate{{MandateID: "m-4", Error: "store down"}},
	}, nil)

	output, err := h.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, 2, output.Updated)
	assert.Equal(t, 1, output.Unchanged)
	assert.Equal(t, []string{"m-3"}, output.Skipped)
	require.Len(t, output.Failed, 1)
	assert.Equal(t, "m-4", output.Failed[0].MandateID)
}

func TestHandler_Execute_BatchError(t *testing.T) {
	h, rec := newTestHandler(t)
	rec.On("RecomputeAll", mock.Anything).
		Return(nil, apperrors.NewDataUnavailableError("mandates", context.DeadlineExceeded))

	_, err := h.Execute(context.Background(), &Input{})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDataUnavailable))
}

func TestInputSchema_AcceptsEmptyVariables(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{"unrelated": true})
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: TaskType, Variables: string(raw)}}

	var input Input
	require.NoError(t, camunda.DecodeVariables(job, DefaultConfig().InputSchema, &input))
	assert.Empty(t, input.MandateID)
}
