package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/source"
	"github.com/fystack/taixiu-predictor/internal/worker"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/model"
)

type fakeView struct {
	snap    *worker.Snapshot
	err     error
	history []game.Session
}

func (v *fakeView) Stream() string { return "sunwin" }

func (v *fakeView) Latest() (worker.Snapshot, bool) {
	if v.snap == nil {
		return worker.Snapshot{}, false
	}
	return *v.snap, true
}

func (v *fakeView) LastError() error { return v.err }

func (v *fakeView) History() []game.Session { return v.history }

type fakeArchive struct {
	settled, hits int64
	recent        []*model.PredictionRecord
}

func (a *fakeArchive) Archive(context.Context, string, events.PredictionEvent) error { return nil }

func (a *fakeArchive) Settle(context.Context, string, game.Session) (bool, error) { return false, nil }

func (a *fakeArchive) Recent(_ context.Context, _ string, limit int) ([]*model.PredictionRecord, error) {
	return a.recent, nil
}

func (a *fakeArchive) HitRate(context.Context, string) (int64, int64, error) {
	return a.settled, a.hits, nil
}

func testSnapshot() *worker.Snapshot {
	latest := game.NewSession(2024, [3]int{3, 4, 6})
	res := predictor.Result{
		SessionID:     2024,
		NextSessionID: 2025,
		Prediction:    game.Low,
		Label:         "Xỉu",
		Confidence:    67.456,
		Explanation:   "trend: weighted majority | bridge: streak continues",
		Risk:          predictor.RiskMedium,
		Stage:         predictor.StageFull,
	}
	return &worker.Snapshot{Latest: latest, Result: res, Event: events.NewPredictionEvent(latest, res)}
}

func serve(t *testing.T, h *PredictorHTTPHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlePrediction_Success(t *testing.T) {
	h := NewPredictorHTTPHandler("test", &fakeView{snap: testSnapshot()}, nil, nil)

	for _, path := range []string{"/api/prediction", "/api/sunwin"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(t, h, path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decode(t, rec)
			assert.Equal(t, "success", body["status"])
			assert.Equal(t, msgPredictionOK, body["message"])

			data := body["data"].(map[string]any)
			assert.EqualValues(t, 2024, data["phien_truoc"])
			assert.Equal(t, []any{3.0, 4.0, 6.0}, data["xuc_xac"])
			assert.EqualValues(t, 13, data["tong"])
			assert.Equal(t, "Tài", data["ket_qua"])
			assert.EqualValues(t, 2025, data["phien_sau"])
			assert.Equal(t, "VANNHAT AI VIP PREDICTION: Xỉu", data["du_doan"])
			assert.Equal(t, "Độ tin cậy: 67.46%", data["do_tin_cay"])
			assert.Equal(t, "trend: weighted majority | bridge: streak continues", data["giai_thich"])
			assert.EqualValues(t, 2025, data["tong_phien_du_doan"])
			assert.NotContains(t, data, "chi_tiet")
		})
	}
}

func TestHandlePrediction_Detail(t *testing.T) {
	h := NewPredictorHTTPHandler("test", &fakeView{snap: testSnapshot()}, nil, nil)
	rec := serve(t, h, "/api/prediction?detail=true")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].(map[string]any)
	detail := data["chi_tiet"].(map[string]any)
	assert.Equal(t, "medium", detail["risk"])
	assert.Equal(t, "full_aggregation", detail["stage"])
}

func TestHandlePrediction_NotReady(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"empty history", source.ErrEmptyHistory, http.StatusInternalServerError, msgEmptyHistory},
		{"source down", fmt.Errorf("%w: timeout", source.ErrSourceUnavailable), http.StatusServiceUnavailable, msgSourceFailure},
		{"warming up", nil, http.StatusServiceUnavailable, msgSourceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPredictorHTTPHandler("test", &fakeView{err: tt.err}, nil, nil)
			rec := serve(t, h, "/api/prediction")
			assert.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.message, body["message"])
			assert.Nil(t, body["data"])
		})
	}
}

func TestHandlePrediction_MethodNotAllowed(t *testing.T) {
	h := NewPredictorHTTPHandler("test", &fakeView{snap: testSnapshot()}, nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/prediction", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	history := game.NewRoller(1, 500).RollN(80)
	h := NewPredictorHTTPHandler("test", &fakeView{history: history}, nil, nil)

	rec := serve(t, h, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, defaultHistoryLimit, resp.Count)
	assert.Equal(t, int64(579), resp.Sessions[len(resp.Sessions)-1].ID)

	rec = serve(t, h, "/api/history?limit=0")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 80, resp.Count)

	rec = serve(t, h, "/api/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h := NewPredictorHTTPHandler("9.9.9", &fakeView{err: source.ErrEmptyHistory}, nil, nil)
	rec := serve(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "9.9.9", body["version"])
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, source.ErrEmptyHistory.Error(), body["last_error"])
}

func TestHandleStats(t *testing.T) {
	archive := &fakeArchive{settled: 8, hits: 5}
	h := NewPredictorHTTPHandler("test", &fakeView{}, archive, nil)
	rec := serve(t, h, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "62.50%", body["hit_rate"])
	assert.EqualValues(t, 8, body["settled"])

	// without an archive the route is not registered
	h = NewPredictorHTTPHandler("test", &fakeView{}, nil, nil)
	assert.Equal(t, http.StatusNotFound, serve(t, h, "/api/stats").Code)
}

func TestHandleMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("taixiu_history_size 3\n"))
	})
	h := NewPredictorHTTPHandler("test", &fakeView{}, nil, metrics)
	rec := serve(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taixiu_history_size")
}
