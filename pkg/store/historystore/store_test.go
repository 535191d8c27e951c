package historystore

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/infra"
	"github.com/fystack/taixiu-predictor/pkg/kvstore"
)

type HistoryStoreTestSuite struct {
	suite.Suite
	kv    infra.KVStore
	store Store
}

func (s *HistoryStoreTestSuite) SetupTest() {
	s.kv = kvstore.NewMemoryStore(infra.JSON)
	s.store = NewHistoryStore(s.kv)
}

func (s *HistoryStoreTestSuite) TestHistoryRoundTrip() {
	sessions := []game.Session{
		game.NewSession(10, [3]int{1, 2, 3}),
		game.NewSession(11, [3]int{6, 6, 5}),
	}
	s.Require().NoError(s.store.SaveHistory("sunwin", sessions))

	got, err := s.store.LoadHistory("sunwin")
	s.Require().NoError(err)
	s.Equal(sessions, got)

	raw, err := s.kv.Get("history_sunwin")
	s.Require().NoError(err)
	s.Contains(raw, `"result":"Tài"`)
}

func (s *HistoryStoreTestSuite) TestLoadHistoryMissing() {
	got, err := s.store.LoadHistory("sunwin")
	s.NoError(err)
	s.Nil(got)
}

func (s *HistoryStoreTestSuite) TestStreamsAreSeparate() {
	s.Require().NoError(s.store.SaveHistory("a", []game.Session{game.NewSession(1, [3]int{1, 1, 1})}))
	got, err := s.store.LoadHistory("b")
	s.NoError(err)
	s.Empty(got)
}

func (s *HistoryStoreTestSuite) TestLatestRoundTrip() {
	ev := events.NewPredictionEvent(game.NewSession(5, [3]int{4, 4, 4}), predictor.Result{
		NextSessionID: 6,
		Prediction:    game.Low,
		Label:         "Xỉu",
		Confidence:    61.2,
		Stage:         predictor.StageFull,
	})
	s.Require().NoError(s.store.SaveLatest("sunwin", ev))

	got, err := s.store.LoadLatest("sunwin")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(ev, *got)

	missing, err := s.store.LoadLatest("other")
	s.NoError(err)
	s.Nil(missing)
}

func (s *HistoryStoreTestSuite) TestStreamRequired() {
	s.ErrorIs(s.store.SaveHistory("", nil), ErrStreamRequired)
	_, err := s.store.LoadHistory("")
	s.ErrorIs(err, ErrStreamRequired)
	s.ErrorIs(s.store.SaveLatest("", events.PredictionEvent{}), ErrStreamRequired)
}

func TestHistoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(HistoryStoreTestSuite))
}
