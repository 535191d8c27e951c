package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionRecord archives one published prediction. It is settled once the
// predicted session is observed.
type PredictionRecord struct {
	BaseModel
	Stream           string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_stream_target" json:"stream"`
	SessionID        int64           `gorm:"not null" json:"session_id"`
	TargetSessionID  int64           `gorm:"not null;uniqueIndex:idx_stream_target" json:"target_session_id"`
	Prediction       string          `gorm:"type:varchar(8);not null" json:"prediction"`
	Confidence       decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"confidence"`
	BreakProbability decimal.Decimal `gorm:"type:numeric(4,3)" json:"break_probability"`
	Risk             string          `gorm:"type:varchar(8)" json:"risk"`
	Stage            string          `gorm:"type:varchar(32)" json:"stage"`
	Explanation      string          `gorm:"type:text" json:"explanation"`
	Actual           *string         `gorm:"type:varchar(8)" json:"actual,omitempty"`
	Hit              *bool           `json:"hit,omitempty"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
}

func (PredictionRecord) TableName() string {
	return "prediction_records"
}

// Settled reports whether the predicted session has been observed.
func (r PredictionRecord) Settled() bool {
	return r.Actual != nil
}
