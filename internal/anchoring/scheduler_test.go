package anchoring_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/fv-registry/internal/anchoring"
	"github.com/filevault/fv-registry/internal/eventlog"
	"github.com/filevault/fv-registry/internal/locker"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/mocks"
	"github.com/filevault/fv-registry/internal/store/schema"
	"github.com/filevault/fv-registry/internal/sweeper"
)

type testSchedulerMocks struct {
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	redis     *mocks.MockRedisClient
	clock     *mocks.MockClock
	scheduler sweeper.Sweeper
}

func setupTestScheduler(t *testing.T) *testSchedulerMocks {
	err := logger.Initialize(logger.Config{Debug: true})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)

	tm := &testSchedulerMocks{
		ctrl:  ctrl,
		store: mocks.NewMockStore(ctrl),
		redis: mocks.NewMockRedisClient(ctrl),
		clock: mocks.NewMockClock(ctrl),
	}

	lk := locker.New(tm.redis)
	events := eventlog.NewLogger(tm.store, nil, tm.clock, time.Hour, "")
	service := anchoring.NewService(tm.store, nil, events, lk, tm.clock, testAnchoringConfig())
	tm.scheduler = anchoring.NewScheduler(service, tm.store, lk, tm.clock, testAnchoringConfig())
	return tm
}

func TestScheduler_Name(t *testing.T) {
	tm := setupTestScheduler(t)
	defer tm.ctrl.Finish()

	assert.Equal(t, "anchor-scheduler", tm.scheduler.Name())
}

func TestScheduler_BackfillsMissedPeriods(t *testing.T) {
	tm := setupTestScheduler(t)
	defer tm.ctrl.Finish()

	target := testNow.Unix()/3600 - 1
	cursor := target - 3 // three completed periods missed while down

	anchored := make(chan int64, 16)

	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()
	tm.clock.EXPECT().After(gomock.Any()).Return(make(chan time.Time)).AnyTimes()
	tm.store.EXPECT().
		GetValue(gomock.Any(), "anchoring:last_anchored_period").
		Return(strconv.FormatInt(cursor, 10), nil).
		AnyTimes()
	tm.redis.EXPECT().
		SetNX(gomock.Any(), gomock.Any(), "1", gomock.Any()).
		Return(true, nil).
		AnyTimes()
	// Every backfilled period is already anchored, so each pass is a lookup.
	tm.store.EXPECT().
		GetAnchor(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, periodID int64) (*schema.Anchor, error) {
			select {
			case anchored <- periodID:
			default:
			}
			row := anchoredRow()
			row.PeriodID = periodID
			return row, nil
		}).
		AnyTimes()
	tm.store.EXPECT().SetValue(gomock.Any(), "anchoring:last_anchored_period", gomock.Any()).Return(nil).AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.scheduler.Start(context.Background())
	}()

	var got []int64
	for len(got) < 3 {
		select {
		case periodID := <-anchored:
			got = append(got, periodID)
		case <-time.After(5 * time.Second):
			t.Fatalf("scheduler anchored %d of 3 expected periods", len(got))
		}
	}
	assert.Equal(t, []int64{cursor + 1, cursor + 2, target}, got)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.scheduler.Stop(stopCtx))
	require.NoError(t, <-done)
}

func TestScheduler_FailedPeriodHaltsBackfill(t *testing.T) {
	tm := setupTestScheduler(t)
	defer tm.ctrl.Finish()

	target := testNow.Unix()/3600 - 1
	cursor := target - 2 // the failing period and the target are outstanding

	failed := make(chan struct{}, 1)

	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()
	tm.clock.EXPECT().After(gomock.Any()).Return(make(chan time.Time)).AnyTimes()
	tm.store.EXPECT().
		GetValue(gomock.Any(), "anchoring:last_anchored_period").
		Return(strconv.FormatInt(cursor, 10), nil).
		AnyTimes()
	tm.redis.EXPECT().
		SetNX(gomock.Any(), gomock.Any(), "1", gomock.Any()).
		Return(true, nil).
		AnyTimes()

	// Only the failing period may be touched: a later success must not move
	// the cursor past it, so no GetAnchor for the target and no SetValue at
	// all are expected.
	tm.store.EXPECT().
		GetAnchor(gomock.Any(), cursor+1).
		DoAndReturn(func(ctx context.Context, periodID int64) (*schema.Anchor, error) {
			select {
			case failed <- struct{}{}:
			default:
			}
			return nil, assert.AnError
		}).
		AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.scheduler.Start(context.Background())
	}()

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never attempted the failing period")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.scheduler.Stop(stopCtx))
	require.NoError(t, <-done)
}

func TestScheduler_AnchorsOnlyPreviousPeriodWhenCaughtUp(t *testing.T) {
	tm := setupTestScheduler(t)
	defer tm.ctrl.Finish()

	target := testNow.Unix()/3600 - 1
	anchored := make(chan int64, 16)

	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()
	tm.clock.EXPECT().After(gomock.Any()).Return(make(chan time.Time)).AnyTimes()
	// Cursor already at the target: no backfill, just the previous period.
	tm.store.EXPECT().
		GetValue(gomock.Any(), "anchoring:last_anchored_period").
		Return(strconv.FormatInt(target, 10), nil).
		AnyTimes()
	tm.redis.EXPECT().
		SetNX(gomock.Any(), gomock.Any(), "1", gomock.Any()).
		Return(true, nil).
		AnyTimes()
	tm.store.EXPECT().
		GetAnchor(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, periodID int64) (*schema.Anchor, error) {
			select {
			case anchored <- periodID:
			default:
			}
			row := anchoredRow()
			row.PeriodID = periodID
			return row, nil
		}).
		AnyTimes()
	tm.store.EXPECT().SetValue(gomock.Any(), "anchoring:last_anchored_period", gomock.Any()).Return(nil).AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.scheduler.Start(context.Background())
	}()

	select {
	case periodID := <-anchored:
		// The current, still-filling period is never anchored.
		assert.Equal(t, target, periodID)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never anchored the previous period")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.scheduler.Stop(stopCtx))
	require.NoError(t, <-done)
}
