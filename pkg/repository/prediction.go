package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/model"
)

// PredictionArchive stores published predictions and settles them against
// the observed outcome.
type PredictionArchive interface {
	Archive(ctx context.Context, stream string, ev events.PredictionEvent) error
	Settle(ctx context.Context, stream string, s game.Session) (bool, error)
	Recent(ctx context.Context, stream string, limit int) ([]*model.PredictionRecord, error)
	HitRate(ctx context.Context, stream string) (settled, hits int64, err error)
}

type predictionArchive struct {
	repo Repository[model.PredictionRecord]
}

func NewPredictionArchive(db *gorm.DB) PredictionArchive {
	return &predictionArchive{repo: NewRepository[model.PredictionRecord](db)}
}

// Migrate creates or updates the archive table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.PredictionRecord{})
}

// NewPredictionRecord converts a published prediction into its archive row.
// Waiting results have nothing to settle and yield nil.
func NewPredictionRecord(stream string, ev events.PredictionEvent) *model.PredictionRecord {
	if !ev.Prediction.Valid() {
		return nil
	}
	return &model.PredictionRecord{
		Stream:           stream,
		SessionID:        ev.SessionID,
		TargetSessionID:  ev.NextSessionID,
		Prediction:       ev.Prediction.String(),
		Confidence:       decimal.NewFromFloat(ev.Confidence).Round(2),
		BreakProbability: decimal.NewFromFloat(ev.BreakProbability).Round(3),
		Risk:             string(ev.Risk),
		Stage:            string(ev.Stage),
		Explanation:      ev.Explanation,
	}
}

// Archive inserts the prediction once; republishing the same target session
// is a no-op.
func (a *predictionArchive) Archive(ctx context.Context, stream string, ev events.PredictionEvent) error {
	rec := NewPredictionRecord(stream, ev)
	if rec == nil {
		return nil
	}
	err := a.repo.GetDB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
	return WrapError(err)
}

func (a *predictionArchive) Settle(ctx context.Context, stream string, s game.Session) (bool, error) {
	if !s.Outcome.Valid() {
		return false, nil
	}
	actual := s.Outcome.String()
	n, err := a.repo.Updates(ctx, WhereType{
		"stream":            stream,
		"target_session_id": s.ID,
		"actual":            nil,
	}, map[string]any{
		"actual":     actual,
		"hit":        gorm.Expr("prediction = ?", actual),
		"settled_at": time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *predictionArchive) Recent(ctx context.Context, stream string, limit int) ([]*model.PredictionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return a.repo.Find(ctx, FindOptions{
		Where: WhereType{"stream": stream},
		Order: Order{Desc("target_session_id")},
		Limit: uint(limit),
	})
}

func (a *predictionArchive) HitRate(ctx context.Context, stream string) (int64, int64, error) {
	var settled, hits int64
	db := a.repo.GetDB().WithContext(ctx).Model(&model.PredictionRecord{})
	if err := db.Where("stream = ? AND actual IS NOT NULL", stream).Count(&settled).Error; err != nil {
		return 0, 0, WrapError(err)
	}
	db = a.repo.GetDB().WithContext(ctx).Model(&model.PredictionRecord{})
	if err := db.Where("stream = ? AND hit = ?", stream, true).Count(&hits).Error; err != nil {
		return 0, 0, WrapError(err)
	}
	return settled, hits, nil
}

// IsNotFound reports whether err is the repository not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
