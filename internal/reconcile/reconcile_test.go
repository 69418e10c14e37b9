package reconcile_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/mocks"
	"github.com/filevault/fv-registry/internal/reconcile"
	"github.com/filevault/fv-registry/internal/store/schema"
)

var (
	testCapID   = domain.CapabilityID("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testFileID  = domain.FileID("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testGrantor = "0x1111111111111111111111111111111111111111"
	testGrantee = "0x2222222222222222222222222222222222222222"
	testNow     = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

type testReconcilerMocks struct {
	ctrl       *gomock.Controller
	oracle     *mocks.MockOracle
	store      *mocks.MockStore
	clock      *mocks.MockClock
	reconciler *reconcile.Reconciler
}

func setupTestReconciler(t *testing.T) *testReconcilerMocks {
	err := logger.Initialize(logger.Config{Debug: true})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)

	tm := &testReconcilerMocks{
		ctrl:   ctrl,
		oracle: mocks.NewMockOracle(ctrl),
		store:  mocks.NewMockStore(ctrl),
		clock:  mocks.NewMockClock(ctrl),
	}
	tm.reconciler = reconcile.New(tm.oracle, tm.store, tm.clock)
	return tm
}

func cachedGrant() *schema.Grant {
	return &schema.Grant{
		CapID:         string(testCapID),
		FileID:        string(testFileID),
		GrantorID:     testGrantor,
		GranteeID:     testGrantee,
		MaxDownloads:  5,
		UsedDownloads: 1,
		ExpiresAt:     testNow.Add(24 * time.Hour),
	}
}

func onChainGrant() *domain.OnChainGrant {
	return &domain.OnChainGrant{
		Grantor:       testGrantor,
		Grantee:       testGrantee,
		FileID:        testFileID,
		ExpiresAt:     testNow.Add(24 * time.Hour),
		MaxDownloads:  5,
		UsedDownloads: 1,
		CreatedAt:     testNow.Add(-time.Hour),
	}
}

func TestResolve_InvalidCapabilityID(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	_, err := tm.reconciler.Resolve(context.Background(), "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidCapabilityID)
}

func TestResolve_MinedGrantConfirmed(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChainGrant(), nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusConfirmed, view.Status)
	assert.True(t, view.OnChain)
	assert.Equal(t, testFileID, view.FileID)
}

func TestResolve_MinedGrantSkipsCacheRead(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	// No GetGrant expectation: a mined record resolves from the chain alone,
	// so a cache outage cannot fail the read.
	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChainGrant(), nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusConfirmed, view.Status)
	assert.True(t, view.OnChain)
}

func TestResolve_MinedRevocation(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	onChain := onChainGrant()
	onChain.Revoked = true

	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChain, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusRevoked, view.Status)
}

func TestResolve_RevokedBeatsExpired(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	onChain := onChainGrant()
	onChain.Revoked = true
	onChain.ExpiresAt = testNow.Add(-time.Hour)

	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChain, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusRevoked, view.Status)
}

func TestResolve_ExpiryIsStrictlyAfter(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	// expiresAt == now is not expired.
	onChain := onChainGrant()
	onChain.ExpiresAt = testNow

	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChain, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusConfirmed, view.Status)
}

func TestResolve_ExpiredOneSecondPast(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	onChain := onChainGrant()
	onChain.ExpiresAt = testNow.Add(-time.Second)

	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChain, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusExpired, view.Status)
}

func TestResolve_ExhaustedAtBoundary(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	// used == max is exhausted.
	onChain := onChainGrant()
	onChain.UsedDownloads = 5
	onChain.MaxDownloads = 5

	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(onChain, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusExhausted, view.Status)
}

func TestResolve_UnminedFallsBackToCachePending(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().GetGrant(gomock.Any(), string(testCapID)).Return(cachedGrant(), nil)
	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(&domain.OnChainGrant{}, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusPending, view.Status)
	assert.False(t, view.OnChain)
}

func TestResolve_UnminedNoCacheNotFound(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().GetGrant(gomock.Any(), string(testCapID)).Return(nil, nil)
	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(&domain.OnChainGrant{}, nil)

	_, err := tm.reconciler.Resolve(context.Background(), testCapID)
	assert.ErrorIs(t, err, domain.ErrGrantNotFound)
}

func TestResolve_ChainUnreachableServesCache(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	cached := cachedGrant()
	cached.Confirmed = true

	tm.store.EXPECT().GetGrant(gomock.Any(), string(testCapID)).Return(cached, nil)
	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(nil, errors.New("rpc timeout"))
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusConfirmed, view.Status)
	assert.False(t, view.OnChain)
}

func TestResolve_ChainUnreachableNoCacheFails(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	chainErr := errors.New("rpc timeout")
	tm.store.EXPECT().GetGrant(gomock.Any(), string(testCapID)).Return(nil, nil)
	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(nil, chainErr)

	_, err := tm.reconciler.Resolve(context.Background(), testCapID)
	assert.ErrorIs(t, err, chainErr)
}

func TestResolve_CachedRevocationMirrored(t *testing.T) {
	tm := setupTestReconciler(t)
	defer tm.ctrl.Finish()

	revokedAt := testNow.Add(-time.Hour)
	cached := cachedGrant()
	cached.RevokedAt = &revokedAt

	tm.store.EXPECT().GetGrant(gomock.Any(), string(testCapID)).Return(cached, nil)
	tm.oracle.EXPECT().ReadGrant(gomock.Any(), testCapID).Return(&domain.OnChainGrant{}, nil)
	tm.clock.EXPECT().Now().Return(testNow)

	view, err := tm.reconciler.Resolve(context.Background(), testCapID)
	require.NoError(t, err)
	assert.Equal(t, domain.GrantStatusRevoked, view.Status)
}

func TestAuthorizeExercise(t *testing.T) {
	view := &domain.GrantView{GranteeID: testGrantee, GrantorID: testGrantor}

	assert.NoError(t, reconcile.AuthorizeExercise(view, testGrantee))
	// Address comparison is case-insensitive.
	assert.NoError(t, reconcile.AuthorizeExercise(view, strings.ToUpper(testGrantee)))
	assert.ErrorIs(t, reconcile.AuthorizeExercise(view, testGrantor), domain.ErrNotGrantee)
}

func TestAuthorizeRevoke(t *testing.T) {
	view := &domain.GrantView{GranteeID: testGrantee, GrantorID: testGrantor}

	assert.NoError(t, reconcile.AuthorizeRevoke(view, testGrantor))
	assert.ErrorIs(t, reconcile.AuthorizeRevoke(view, testGrantee), domain.ErrNotGrantor)
}
