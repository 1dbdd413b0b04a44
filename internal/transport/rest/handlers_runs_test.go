package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/store"
	"github.com/smilemakc/avtrace/internal/verify"
)

type fakeRunStore struct {
	runs map[uuid.UUID]*store.RunModel
	logs map[uuid.UUID][]*store.DecisionLogModel
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs: make(map[uuid.UUID]*store.RunModel),
		logs: make(map[uuid.UUID][]*store.DecisionLogModel),
	}
}

func (f *fakeRunStore) SaveRun(ctx context.Context, id uuid.UUID, taskName string, result *domain.VerifyResult, matchedJSON []byte) error {
	f.runs[id] = &store.RunModel{
		ID:                 id,
		TaskName:           taskName,
		OK:                 result.OK,
		Reason:             result.Reason,
		TotalScore:         result.TotalScore,
		ManualReviewNeeded: result.ManualReviewNeeded,
		Matched:            matchedJSON,
	}
	return nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, id uuid.UUID) (*store.RunModel, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, assert.AnError
	}
	return run, nil
}

func (f *fakeRunStore) ListDecisionLogs(ctx context.Context, runID uuid.UUID) ([]*store.DecisionLogModel, error) {
	return f.logs[runID], nil
}

func TestHandleCreateRunRejectsMissingFields(t *testing.T) {
	s := NewServer(verify.New(nil, nil, nil, domain.VerifierOptions{}), newFakeRunStore(), verify.NopSink{})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetRunRoundTrip(t *testing.T) {
	fs := newFakeRunStore()
	s := NewServer(verify.New(nil, nil, nil, domain.VerifierOptions{}), fs, verify.NopSink{})

	id := uuid.New()
	matchedJSON, _ := json.Marshal([]domain.NodeMatch{{NodeID: "n1", FrameIndex: 2, Score: 10}})
	require.NoError(t, fs.SaveRun(context.Background(), id, "my-task", &domain.VerifyResult{OK: true, Reason: "matched", TotalScore: 10}, matchedJSON))

	req := httptest.NewRequest(http.MethodGet, "/runs/"+id.String(), nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "my-task", resp.TaskName)
	assert.True(t, resp.OK)
	require.Len(t, resp.Matched, 1)
	assert.Equal(t, "n1", resp.Matched[0].NodeID)
}

func TestHandleGetRunUnknownIDReturnsNotFound(t *testing.T) {
	s := NewServer(verify.New(nil, nil, nil, domain.VerifierOptions{}), newFakeRunStore(), verify.NopSink{})

	req := httptest.NewRequest(http.MethodGet, "/runs/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
