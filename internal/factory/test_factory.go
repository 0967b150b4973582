package factory

import (
	"time"

	broadcastmemory "github.com/scrumdeal/scrumdeal/internal/broadcast/memory"
	"github.com/scrumdeal/scrumdeal/internal/dependencies/mocks"
	"github.com/scrumdeal/scrumdeal/internal/storage/memory"
	"github.com/scrumdeal/scrumdeal/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	logger := testutil.NopLogger()
	transport := broadcastmemory.New(logger)
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, transport, mockClock, mockRandom, 0, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
