package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/mocks"
	"github.com/filevault/fv-registry/internal/relay"
	"github.com/filevault/fv-registry/internal/store/schema"
	"github.com/filevault/fv-registry/internal/sweeper"
)

type testSweeperMocks struct {
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	oracle  *mocks.MockOracle
	clock   *mocks.MockClock
	sweeper sweeper.Sweeper
}

func setupTestSweeper(t *testing.T) *testSweeperMocks {
	err := logger.Initialize(logger.Config{Debug: true})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)

	tm := &testSweeperMocks{
		ctrl:   ctrl,
		store:  mocks.NewMockStore(ctrl),
		oracle: mocks.NewMockOracle(ctrl),
		clock:  mocks.NewMockClock(ctrl),
	}

	worker := relay.NewWorker(tm.store, tm.oracle, nil, tm.clock, testRelayConfig())
	tm.sweeper = relay.NewRequeueSweeper(tm.store, worker, tm.clock, testRelayConfig())
	return tm
}

func TestRequeueSweeper_Name(t *testing.T) {
	tm := setupTestSweeper(t)
	defer tm.ctrl.Finish()

	assert.Equal(t, "relay-requeue-sweeper", tm.sweeper.Name())
}

func TestRequeueSweeper_ReprocessesOrphanedRows(t *testing.T) {
	tm := setupTestSweeper(t)
	defer tm.ctrl.Finish()

	processed := make(chan string, 4)

	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()
	tm.clock.EXPECT().Since(gomock.Any()).Return(time.Millisecond).AnyTimes()
	// Sleep never completes on its own; the test ends the loop via Stop.
	tm.clock.EXPECT().After(gomock.Any()).Return(make(chan time.Time)).AnyTimes()

	orphan := schema.MetaTxRequest{
		RequestID: testRequestID,
		Status:    schema.MetaTxStatusQueued,
	}
	tm.store.EXPECT().
		ListRequeueableMetaTxRequests(gomock.Any(), testRelayConfig().StaleAfter, 100).
		Return([]schema.MetaTxRequest{orphan}, nil).
		AnyTimes()

	// The row was already mined by the time the sweep re-reads it, so the
	// worker pass is a no-op beyond the lookup.
	mined := queuedRequest()
	mined.Status = schema.MetaTxStatusMined
	tm.store.EXPECT().
		GetMetaTxRequest(gomock.Any(), testRequestID).
		DoAndReturn(func(ctx context.Context, requestID string) (*schema.MetaTxRequest, error) {
			select {
			case processed <- requestID:
			default:
			}
			return mined, nil
		}).
		AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.sweeper.Start(context.Background())
	}()

	select {
	case id := <-processed:
		assert.Equal(t, testRequestID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper never picked up the orphaned request")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.sweeper.Stop(stopCtx))
	require.NoError(t, <-done)
}

func TestRequeueSweeper_DrainsBacklogThroughPool(t *testing.T) {
	tm := setupTestSweeper(t)
	defer tm.ctrl.Finish()

	requestIDs := []string{
		"10000000-0000-4000-8000-000000000001",
		"10000000-0000-4000-8000-000000000002",
		"10000000-0000-4000-8000-000000000003",
	}

	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()
	tm.clock.EXPECT().Since(gomock.Any()).Return(time.Millisecond).AnyTimes()
	tm.clock.EXPECT().After(gomock.Any()).Return(make(chan time.Time)).AnyTimes()

	backlog := make([]schema.MetaTxRequest, 0, len(requestIDs))
	for _, id := range requestIDs {
		backlog = append(backlog, schema.MetaTxRequest{
			RequestID: id,
			Status:    schema.MetaTxStatusQueued,
		})
	}
	tm.store.EXPECT().
		ListRequeueableMetaTxRequests(gomock.Any(), testRelayConfig().StaleAfter, 100).
		Return(backlog, nil).
		AnyTimes()

	processed := make(chan string, 16)
	tm.store.EXPECT().
		GetMetaTxRequest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, requestID string) (*schema.MetaTxRequest, error) {
			select {
			case processed <- requestID:
			default:
			}
			return &schema.MetaTxRequest{
				RequestID: requestID,
				Status:    schema.MetaTxStatusMined,
			}, nil
		}).
		AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.sweeper.Start(context.Background())
	}()

	// Every backlog row must reach a worker, not just the head of the batch.
	seen := make(map[string]bool)
	deadline := time.After(5 * time.Second)
	for len(seen) < len(requestIDs) {
		select {
		case id := <-processed:
			seen[id] = true
		case <-deadline:
			t.Fatalf("backlog not drained, processed %d of %d", len(seen), len(requestIDs))
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.sweeper.Stop(stopCtx))
	require.NoError(t, <-done)
}

func TestRequeueSweeper_StartTwiceFails(t *testing.T) {
	tm := setupTestSweeper(t)
	defer tm.ctrl.Finish()

	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()
	tm.clock.EXPECT().After(gomock.Any()).Return(make(chan time.Time)).AnyTimes()
	tm.store.EXPECT().
		ListRequeueableMetaTxRequests(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.sweeper.Start(context.Background())
	}()

	// Give the first Start the race; the loop parks in the interruptible sleep.
	time.Sleep(50 * time.Millisecond)
	assert.Error(t, tm.sweeper.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.sweeper.Stop(stopCtx))
	require.NoError(t, <-done)
}
