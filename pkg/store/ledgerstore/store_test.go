package ledgerstore

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/pkg/infra"
	"github.com/fystack/taixiu-predictor/pkg/kvstore"
)

type LedgerStoreTestSuite struct {
	suite.Suite
	store Store
}

func (s *LedgerStoreTestSuite) SetupTest() {
	s.store = NewLedgerStore(kvstore.NewMemoryStore(infra.JSON))
}

func (s *LedgerStoreTestSuite) TestSaveLoad() {
	l := predictor.NewMemoryLedger()
	l.Record(predictor.ModelTrend, 100, game.High)
	l.Record(predictor.ModelTrend, 101, game.None)
	l.Record(predictor.ModelBridge, 100, game.Low)

	s.Require().NoError(s.store.Save("sunwin", l.Snapshot()))

	got, err := s.store.Load("sunwin")
	s.Require().NoError(err)
	s.Equal(l.Snapshot(), got)
}

func (s *LedgerStoreTestSuite) TestLoadMissing() {
	got, err := s.store.Load("sunwin")
	s.NoError(err)
	s.Empty(got)
}

func (s *LedgerStoreTestSuite) TestRestoreKeepsExisting() {
	saved := predictor.LedgerSnapshot{
		predictor.ModelTrend: {100: game.High, 101: game.Low},
	}
	s.Require().NoError(s.store.Save("sunwin", saved))

	l := predictor.NewMemoryLedger()
	l.Record(predictor.ModelTrend, 100, game.Low)

	added, err := s.store.Restore("sunwin", l)
	s.Require().NoError(err)
	s.Equal(1, added)

	o, ok := l.Lookup(predictor.ModelTrend, 100)
	s.True(ok)
	s.Equal(game.Low, o, "write-once entries are not overwritten")
}

func (s *LedgerStoreTestSuite) TestStreamRequired() {
	s.ErrorIs(s.store.Save("", nil), ErrStreamRequired)
	_, err := s.store.Load("")
	s.ErrorIs(err, ErrStreamRequired)
}

func TestLedgerStoreTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreTestSuite))
}
