package relay_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/locker"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/mocks"
	"github.com/filevault/fv-registry/internal/relay"
	"github.com/filevault/fv-registry/internal/store/schema"
)

const requestMarkerKey = "relay:req:" + testRequestID

type testRelayMocks struct {
	ctrl   *gomock.Controller
	store  *mocks.MockStore
	oracle *mocks.MockOracle
	redis  *mocks.MockRedisClient
	clock  *mocks.MockClock
	relay  *relay.Relay
}

func setupTestRelay(t *testing.T) *testRelayMocks {
	err := logger.Initialize(logger.Config{Debug: true})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)

	tm := &testRelayMocks{
		ctrl:   ctrl,
		store:  mocks.NewMockStore(ctrl),
		oracle: mocks.NewMockOracle(ctrl),
		redis:  mocks.NewMockRedisClient(ctrl),
		clock:  mocks.NewMockClock(ctrl),
	}

	worker := relay.NewWorker(tm.store, tm.oracle, nil, tm.clock, testRelayConfig())
	tm.relay = relay.NewRelay(
		context.Background(),
		tm.store,
		tm.oracle,
		locker.New(tm.redis),
		worker,
		tm.clock,
		testRelayConfig(),
	)
	return tm
}

func TestSubmit_Queued(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	ctx := context.Background()

	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(true, nil)
	tm.oracle.EXPECT().VerifyForwardSignature(gomock.Any(), gomock.Any(), testSignature).Return(true, nil)
	tm.clock.EXPECT().Now().Return(testNow)
	tm.store.EXPECT().CreateMetaTxRequest(gomock.Any(), gomock.Any()).Return(true, nil)

	// The enqueued worker run re-reads the row; returning a mined row makes
	// the asynchronous leg a no-op so the pool drains cleanly.
	mined := queuedRequest()
	mined.Status = schema.MetaTxStatusMined
	tm.store.EXPECT().GetMetaTxRequest(gomock.Any(), testRequestID).Return(mined, nil).AnyTimes()

	result, err := tm.relay.Submit(ctx, testRequestID, testTypedData, testSignature)
	require.NoError(t, err)
	assert.Equal(t, relay.SubmitStatusQueued, result.Status)
	assert.NotEmpty(t, result.TaskID)

	tm.relay.Stop()
}

func TestSubmit_DuplicateMarker(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	// A held marker is only a duplicate when the row behind it exists.
	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(false, nil)
	tm.store.EXPECT().GetMetaTxRequest(gomock.Any(), testRequestID).Return(queuedRequest(), nil)

	result, err := tm.relay.Submit(context.Background(), testRequestID, testTypedData, testSignature)
	require.NoError(t, err)
	assert.Equal(t, relay.SubmitStatusDuplicate, result.Status)
	assert.Empty(t, result.TaskID)
}

func TestSubmit_MarkerWithoutRowIsReaccepted(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	// A submitter crashed between claiming the marker and persisting the row;
	// the request must not be answered duplicate into the void.
	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(false, nil)
	mined := queuedRequest()
	mined.Status = schema.MetaTxStatusMined
	gomock.InOrder(
		tm.store.EXPECT().GetMetaTxRequest(gomock.Any(), testRequestID).Return(nil, nil),
		tm.store.EXPECT().GetMetaTxRequest(gomock.Any(), testRequestID).Return(mined, nil).AnyTimes(),
	)
	tm.oracle.EXPECT().VerifyForwardSignature(gomock.Any(), gomock.Any(), testSignature).Return(true, nil)
	tm.clock.EXPECT().Now().Return(testNow)
	tm.store.EXPECT().CreateMetaTxRequest(gomock.Any(), gomock.Any()).Return(true, nil)

	result, err := tm.relay.Submit(context.Background(), testRequestID, testTypedData, testSignature)
	require.NoError(t, err)
	assert.Equal(t, relay.SubmitStatusQueued, result.Status)

	tm.relay.Stop()
}

func TestSubmit_DuplicateRowSurvivesLostMarker(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	// Marker was flushed but the durable row still resolves the duplicate.
	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(true, nil)
	tm.oracle.EXPECT().VerifyForwardSignature(gomock.Any(), gomock.Any(), testSignature).Return(true, nil)
	tm.clock.EXPECT().Now().Return(testNow)
	tm.store.EXPECT().CreateMetaTxRequest(gomock.Any(), gomock.Any()).Return(false, nil)

	result, err := tm.relay.Submit(context.Background(), testRequestID, testTypedData, testSignature)
	require.NoError(t, err)
	assert.Equal(t, relay.SubmitStatusDuplicate, result.Status)
}

func TestSubmit_PreflightRejectsBadSignature(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(true, nil)
	tm.oracle.EXPECT().VerifyForwardSignature(gomock.Any(), gomock.Any(), testSignature).Return(false, nil)
	// Rejection frees the marker so a corrected resubmission can reuse the id.
	tm.redis.EXPECT().Del(gomock.Any(), requestMarkerKey).Return(nil)

	_, err := tm.relay.Submit(context.Background(), testRequestID, testTypedData, testSignature)
	assert.ErrorIs(t, err, domain.ErrBadSignature)
}

func TestSubmit_PreflightOutageDoesNotBlock(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(true, nil)
	tm.oracle.EXPECT().VerifyForwardSignature(gomock.Any(), gomock.Any(), testSignature).Return(false, assert.AnError)
	tm.clock.EXPECT().Now().Return(testNow)
	tm.store.EXPECT().CreateMetaTxRequest(gomock.Any(), gomock.Any()).Return(true, nil)

	mined := queuedRequest()
	mined.Status = schema.MetaTxStatusMined
	tm.store.EXPECT().GetMetaTxRequest(gomock.Any(), testRequestID).Return(mined, nil).AnyTimes()

	result, err := tm.relay.Submit(context.Background(), testRequestID, testTypedData, testSignature)
	require.NoError(t, err)
	assert.Equal(t, relay.SubmitStatusQueued, result.Status)

	tm.relay.Stop()
}

func TestSubmit_PersistFailureReleasesMarker(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	tm.redis.EXPECT().SetNX(gomock.Any(), requestMarkerKey, "1", locker.RequestMarkerTTL).Return(true, nil)
	tm.oracle.EXPECT().VerifyForwardSignature(gomock.Any(), gomock.Any(), testSignature).Return(true, nil)
	tm.clock.EXPECT().Now().Return(testNow)
	tm.store.EXPECT().CreateMetaTxRequest(gomock.Any(), gomock.Any()).Return(false, assert.AnError)
	tm.redis.EXPECT().Del(gomock.Any(), requestMarkerKey).Return(nil)

	_, err := tm.relay.Submit(context.Background(), testRequestID, testTypedData, testSignature)
	assert.ErrorContains(t, err, "failed to persist relay request")
}

func TestSubmit_InvalidRequestID(t *testing.T) {
	tm := setupTestRelay(t)
	defer tm.ctrl.Finish()

	_, err := tm.relay.Submit(context.Background(), "not-a-uuid", testTypedData, testSignature)
	assert.ErrorContains(t, err, "invalid request id")
}

func TestSystemRequestID_Deterministic(t *testing.T) {
	capID := domain.CapabilityID(testCapIDHex)

	first := relay.SystemRequestID("grant.use", capID, "0x2222222222222222222222222222222222222222")
	second := relay.SystemRequestID("grant.use", capID, "0x2222222222222222222222222222222222222222")
	assert.Equal(t, first, second)

	assert.NotEqual(t, first, relay.SystemRequestID("grant.revoke", capID, "0x2222222222222222222222222222222222222222"))
	assert.NotEqual(t, first, relay.SystemRequestID("grant.use", capID, "0x1111111111111111111111111111111111111111"))
}
