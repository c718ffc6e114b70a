package stats

import "github.com/stretchr/testify/mock"

// MockStatsProvider records metric updates as testify mock calls. Set
// expectations with On("Incr", RoomsOccupied).
type MockStatsProvider struct {
	mock.Mock
}

var _ StatsProvider = (*MockStatsProvider)(nil)

func (m *MockStatsProvider) Incr(name string)           { m.Called(name) }
func (m *MockStatsProvider) Decr(name string)           { m.Called(name) }
func (m *MockStatsProvider) RegisterMetric(name string) { m.Called(name) }
