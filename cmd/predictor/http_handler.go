package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/internal/source"
	"github.com/fystack/taixiu-predictor/internal/worker"
	"github.com/fystack/taixiu-predictor/pkg/common/logger"
	"github.com/fystack/taixiu-predictor/pkg/model"
	"github.com/fystack/taixiu-predictor/pkg/repository"
)

const (
	predictionPrefix = "VANNHAT AI VIP PREDICTION: "
	confidencePrefix = "Độ tin cậy: "

	msgPredictionOK  = "Dự đoán phiên tiếp theo thành công."
	msgEmptyHistory  = "Dữ liệu lịch sử rỗng hoặc không hợp lệ từ API gốc."
	msgSourceFailure = "Có lỗi xảy ra khi lấy dữ liệu từ nguồn gốc sau nhiều lần thử. Vui lòng thử lại sau."

	defaultHistoryLimit = 50
)

var reservedPaths = []string{"", "prediction", "history", "stats"}

// PredictionView is the part of the worker the HTTP layer reads.
type PredictionView interface {
	Stream() string
	Latest() (worker.Snapshot, bool)
	LastError() error
	History() []game.Session
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Stream    string    `json:"stream"`
	Ready     bool      `json:"ready"`
	LastError string    `json:"last_error,omitempty"`
}

// APIResponse is the envelope of the prediction API.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type PredictionData struct {
	PreviousSession  int64             `json:"phien_truoc"`
	Dice             [3]int            `json:"xuc_xac"`
	Total            int               `json:"tong"`
	Result           string            `json:"ket_qua"`
	NextSession      int64             `json:"phien_sau"`
	Prediction       string            `json:"du_doan"`
	Confidence       string            `json:"do_tin_cay"`
	Explanation      string            `json:"giai_thich"`
	PredictedSession int64             `json:"tong_phien_du_doan"`
	Detail           *predictor.Result `json:"chi_tiet,omitempty"`
}

type HistoryResponse struct {
	Status   string         `json:"status"`
	Stream   string         `json:"stream"`
	Count    int            `json:"count"`
	Sessions []game.Session `json:"history"`
}

type StatsResponse struct {
	Status  string                    `json:"status"`
	Stream  string                    `json:"stream"`
	Settled int64                     `json:"settled"`
	Hits    int64                     `json:"hits"`
	HitRate string                    `json:"hit_rate"`
	Recent  []*model.PredictionRecord `json:"recent"`
}

type PredictorHTTPHandler struct {
	version string
	view    PredictionView
	archive repository.PredictionArchive
	metrics http.Handler
}

func NewPredictorHTTPHandler(version string, view PredictionView, archive repository.PredictionArchive, metrics http.Handler) *PredictorHTTPHandler {
	return &PredictorHTTPHandler{
		version: version,
		view:    view,
		archive: archive,
		metrics: metrics,
	}
}

func (h *PredictorHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/prediction", h.HandlePrediction)
	// legacy path, e.g. /api/sunwin
	if !lo.Contains(reservedPaths, h.view.Stream()) {
		mux.HandleFunc("/api/"+h.view.Stream(), h.HandlePrediction)
	}
	mux.HandleFunc("/api/history", h.HandleHistory)
	if h.archive != nil {
		mux.HandleFunc("/api/stats", h.HandleStats)
	}
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}
}

func (h *PredictorHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_, ready := h.view.Latest()
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Stream:    h.view.Stream(),
		Ready:     ready,
	}
	if err := h.view.LastError(); err != nil {
		response.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *PredictorHTTPHandler) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, ok := h.view.Latest()
	if !ok {
		if errors.Is(h.view.LastError(), source.ErrEmptyHistory) {
			writeJSON(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: msgEmptyHistory})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, APIResponse{Status: "error", Message: msgSourceFailure, Data: nil})
		return
	}

	data := NewPredictionData(snap)
	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		res := snap.Result
		data.Detail = &res
	}
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", Message: msgPredictionOK, Data: data})
}

// NewPredictionData formats a snapshot in the legacy response layout.
func NewPredictionData(snap worker.Snapshot) PredictionData {
	res := snap.Result
	return PredictionData{
		PreviousSession:  snap.Latest.ID,
		Dice:             snap.Latest.Dice,
		Total:            snap.Latest.Total,
		Result:           snap.Latest.Outcome.String(),
		NextSession:      res.NextSessionID,
		Prediction:       predictionPrefix + res.Label,
		Confidence:       confidencePrefix + decimal.NewFromFloat(res.Confidence).StringFixed(2) + "%",
		Explanation:      res.Explanation,
		PredictedSession: res.NextSessionID,
	}
}

func (h *PredictorHTTPHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions := h.view.History()
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[len(sessions)-limit:]
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Status:   "success",
		Stream:   h.view.Stream(),
		Count:    len(sessions),
		Sessions: sessions,
	})
}

func (h *PredictorHTTPHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := parseLimit(r, 20)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	stream := h.view.Stream()
	settled, hits, err := h.archive.HitRate(r.Context(), stream)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	recent, err := h.archive.Recent(r.Context(), stream, limit)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	rate := decimal.Zero
	if settled > 0 {
		rate = decimal.NewFromInt(hits).Div(decimal.NewFromInt(settled)).Mul(decimal.NewFromInt(100))
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Status:  "success",
		Stream:  stream,
		Settled: settled,
		Hits:    hits,
		HitRate: rate.StringFixed(2) + "%",
		Recent:  recent,
	})
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit: %q", raw)
	}
	return n, nil
}

func startHTTPServer(port int, handler *PredictorHTTPHandler) *http.Server {
	mux := http.NewServeMux()
	handler.Register(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "status", statusCode, "err", err)
	}
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, APIResponse{
		Status:  "error",
		Message: message,
	})
}
