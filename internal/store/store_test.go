package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/filevault/fv-registry/internal/store/schema"
)

var idCounter atomic.Uint64

// uniqueHex32 generates a unique 0x-prefixed 32-byte hex string per call so
// tests sharing the database never collide on primary keys.
func uniqueHex32() string {
	var raw [32]byte
	n := idCounter.Add(1)
	for i := 0; i < 8; i++ {
		raw[31-i] = byte(n >> (8 * i))
	}
	raw[0] = 0x7e
	return "0x" + hex.EncodeToString(raw[:])
}

func uniqueRequestID() string {
	n := idCounter.Add(1)
	return fmt.Sprintf("00000000-0000-4000-8000-%012x", n)
}

func buildTestGrant() CreateGrantInput {
	return CreateGrantInput{
		CapID:        uniqueHex32(),
		FileID:       uniqueHex32(),
		GrantorID:    "0x1111111111111111111111111111111111111111",
		GranteeID:    "0x2222222222222222222222222222222222222222",
		ExpiresAt:    time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond),
		MaxDownloads: 5,
	}
}

func buildTestMetaTxRequest() CreateMetaTxRequestInput {
	return CreateMetaTxRequestInput{
		RequestID: uniqueRequestID(),
		TypedData: datatypes.JSON(`{"domain":{},"message":{}}`),
		Signature: "0xdeadbeef",
		TaskID:    "01JWNJ8M9XQ3T5VWXYZABCDEFG",
	}
}

func buildTestEvent(periodID int64) CreateEventInput {
	return CreateEventInput{
		Type:        "grant.created",
		PeriodID:    periodID,
		PayloadHash: uniqueHex32(),
		Timestamp:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// uniquePeriodID returns a period id no other test uses
func uniquePeriodID() int64 {
	return int64(idCounter.Add(1)) + 1_000_000
}

// =============================================================================
// Grants
// =============================================================================

func TestCreateGrant_Idempotent(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestGrant()

	created, err := st.CreateGrant(ctx, input)
	require.NoError(t, err)
	assert.True(t, created)

	// Same cap id again is a no-op
	created, err = st.CreateGrant(ctx, input)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGetGrant(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestGrant()

	_, err := st.CreateGrant(ctx, input)
	require.NoError(t, err)

	grant, err := st.GetGrant(ctx, input.CapID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, input.FileID, grant.FileID)
	assert.Equal(t, input.GrantorID, grant.GrantorID)
	assert.Equal(t, input.GranteeID, grant.GranteeID)
	assert.Equal(t, input.MaxDownloads, grant.MaxDownloads)
	assert.Equal(t, uint64(0), grant.UsedDownloads)
	assert.False(t, grant.Confirmed)
	assert.Nil(t, grant.RevokedAt)

	missing, err := st.GetGrant(ctx, uniqueHex32())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGrantExists(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestGrant()

	exists, err := st.GrantExists(ctx, input.CapID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = st.CreateGrant(ctx, input)
	require.NoError(t, err)

	exists, err = st.GrantExists(ctx, input.CapID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMarkGrantConfirmed(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestGrant()
	txHash := uniqueHex32()

	_, err := st.CreateGrant(ctx, input)
	require.NoError(t, err)

	require.NoError(t, st.MarkGrantConfirmed(ctx, input.CapID, txHash))

	grant, err := st.GetGrant(ctx, input.CapID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.True(t, grant.Confirmed)
	require.NotNil(t, grant.TxHash)
	assert.Equal(t, txHash, *grant.TxHash)
}

func TestMirrorGrantUsage(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestGrant()

	_, err := st.CreateGrant(ctx, input)
	require.NoError(t, err)

	require.NoError(t, st.MirrorGrantUsage(ctx, input.CapID, 3, nil))

	grant, err := st.GetGrant(ctx, input.CapID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), grant.UsedDownloads)
	assert.Nil(t, grant.RevokedAt)

	revokedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, st.MirrorGrantUsage(ctx, input.CapID, 3, &revokedAt))

	grant, err = st.GetGrant(ctx, input.CapID)
	require.NoError(t, err)
	require.NotNil(t, grant.RevokedAt)
	assert.WithinDuration(t, revokedAt, *grant.RevokedAt, time.Second)
}

// =============================================================================
// Meta-tx requests
// =============================================================================

func TestCreateMetaTxRequest_Idempotent(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestMetaTxRequest()

	created, err := st.CreateMetaTxRequest(ctx, input)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = st.CreateMetaTxRequest(ctx, input)
	require.NoError(t, err)
	assert.False(t, created)

	req, err := st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, schema.MetaTxStatusQueued, req.Status)
	assert.Equal(t, 0, req.Attempts)
}

func TestMetaTxLifecycle_Mined(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestMetaTxRequest()
	txHash := uniqueHex32()

	_, err := st.CreateMetaTxRequest(ctx, input)
	require.NoError(t, err)

	claimed, err := st.ClaimMetaTxRequest(ctx, input.RequestID, 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	req, err := st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	assert.Equal(t, schema.MetaTxStatusSent, req.Status)
	assert.Equal(t, 1, req.Attempts)

	// Reclaiming a stale sent row bumps the counter without changing the status
	claimed, err = st.ClaimMetaTxRequest(ctx, input.RequestID, 0)
	require.NoError(t, err)
	assert.True(t, claimed)
	req, err = st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 2, req.Attempts)

	require.NoError(t, st.MarkMetaTxMined(ctx, input.RequestID, txHash))
	req, err = st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	assert.Equal(t, schema.MetaTxStatusMined, req.Status)
	require.NotNil(t, req.TxHash)
	assert.Equal(t, txHash, *req.TxHash)

	// A mined row never regresses
	claimed, err = st.ClaimMetaTxRequest(ctx, input.RequestID, 0)
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NoError(t, st.MarkMetaTxFailed(ctx, input.RequestID, "late failure"))
	req, err = st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	assert.Equal(t, schema.MetaTxStatusMined, req.Status)
}

func TestClaimMetaTxRequest_SingleWinner(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestMetaTxRequest()

	_, err := st.CreateMetaTxRequest(ctx, input)
	require.NoError(t, err)

	// The first claimer wins the queued row.
	claimed, err := st.ClaimMetaTxRequest(ctx, input.RequestID, 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claimer loses while the sent row is fresh.
	claimed, err = st.ClaimMetaTxRequest(ctx, input.RequestID, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	req, err := st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Attempts)
}

func TestMetaTxLifecycle_Failed(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	input := buildTestMetaTxRequest()

	_, err := st.CreateMetaTxRequest(ctx, input)
	require.NoError(t, err)

	claimed, err := st.ClaimMetaTxRequest(ctx, input.RequestID, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, st.MarkMetaTxFailed(ctx, input.RequestID, "bad_signature"))

	req, err := st.GetMetaTxRequest(ctx, input.RequestID)
	require.NoError(t, err)
	assert.Equal(t, schema.MetaTxStatusFailed, req.Status)
	require.NotNil(t, req.LastError)
	assert.Equal(t, "bad_signature", *req.LastError)
}

func TestListRequeueableMetaTxRequests(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()

	queued := buildTestMetaTxRequest()
	_, err := st.CreateMetaTxRequest(ctx, queued)
	require.NoError(t, err)

	freshSent := buildTestMetaTxRequest()
	_, err = st.CreateMetaTxRequest(ctx, freshSent)
	require.NoError(t, err)
	claimed, err := st.ClaimMetaTxRequest(ctx, freshSent.RequestID, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	// Fresh rows are left to the in-process pool; the sweep only picks up
	// rows older than the staleness cutoff.
	requests, err := st.ListRequeueableMetaTxRequests(ctx, 10*time.Minute, 1000)
	require.NoError(t, err)

	ids := make(map[string]bool, len(requests))
	for _, req := range requests {
		ids[req.RequestID] = true
	}
	assert.False(t, ids[queued.RequestID])
	assert.False(t, ids[freshSent.RequestID])

	// With a zero staleness cutoff both become eligible.
	requests, err = st.ListRequeueableMetaTxRequests(ctx, 0, 1000)
	require.NoError(t, err)
	ids = make(map[string]bool, len(requests))
	for _, req := range requests {
		ids[req.RequestID] = true
	}
	assert.True(t, ids[queued.RequestID])
	assert.True(t, ids[freshSent.RequestID])
}

// =============================================================================
// Anchors
// =============================================================================

func TestCreateAnchor_Idempotent(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	periodID := uniquePeriodID()

	first, err := st.CreateAnchor(ctx, schema.Anchor{
		PeriodID:   periodID,
		MerkleRoot: uniqueHex32(),
		EventCount: 3,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	// A second insert for the same period returns the stored row unchanged
	second, err := st.CreateAnchor(ctx, schema.Anchor{
		PeriodID:   periodID,
		MerkleRoot: uniqueHex32(),
		EventCount: 99,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.MerkleRoot, second.MerkleRoot)
	assert.Equal(t, int64(3), second.EventCount)
}

func TestAttachAnchorTxHash_Once(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	periodID := uniquePeriodID()
	txHash := uniqueHex32()

	_, err := st.CreateAnchor(ctx, schema.Anchor{
		PeriodID:   periodID,
		MerkleRoot: uniqueHex32(),
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, st.AttachAnchorTxHash(ctx, periodID, txHash))

	anchor, err := st.GetAnchor(ctx, periodID)
	require.NoError(t, err)
	require.NotNil(t, anchor.TxHash)
	assert.Equal(t, txHash, *anchor.TxHash)

	// A second attach does not overwrite the recorded hash
	require.NoError(t, st.AttachAnchorTxHash(ctx, periodID, uniqueHex32()))
	anchor, err = st.GetAnchor(ctx, periodID)
	require.NoError(t, err)
	assert.Equal(t, txHash, *anchor.TxHash)
}

func TestGetLatestAnchor(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()

	older := uniquePeriodID()
	newer := older + 1

	_, err := st.CreateAnchor(ctx, schema.Anchor{PeriodID: older, MerkleRoot: uniqueHex32(), CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = st.CreateAnchor(ctx, schema.Anchor{PeriodID: newer, MerkleRoot: uniqueHex32(), CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	latest, err := st.GetLatestAnchor(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.GreaterOrEqual(t, latest.PeriodID, newer)
}

// =============================================================================
// Events
// =============================================================================

func TestCreateAndListEventsByPeriod(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	periodID := uniquePeriodID()

	first, err := st.CreateEvent(ctx, buildTestEvent(periodID))
	require.NoError(t, err)
	second, err := st.CreateEvent(ctx, buildTestEvent(periodID))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	events, err := st.ListEventsByPeriod(ctx, periodID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Ordered by id for deterministic Merkle roots
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	count, err := st.CountEventsByPeriod(ctx, periodID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	empty, err := st.ListEventsByPeriod(ctx, uniquePeriodID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCreateEvent_OptionalRefs(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()

	fileID := uniqueHex32()
	userID := "0x1111111111111111111111111111111111111111"
	input := buildTestEvent(uniquePeriodID())
	input.FileID = &fileID
	input.UserID = &userID

	event, err := st.CreateEvent(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, event.FileID)
	assert.Equal(t, fileID, *event.FileID)
	require.NotNil(t, event.UserID)
	assert.Equal(t, userID, *event.UserID)
}

// =============================================================================
// Key-value store
// =============================================================================

func TestKeyValueStore(t *testing.T) {
	st := NewPGStore(testDB)
	ctx := context.Background()
	key := fmt.Sprintf("test:cursor:%d", idCounter.Add(1))

	value, err := st.GetValue(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, st.SetValue(ctx, key, "485000"))
	value, err = st.GetValue(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "485000", value)

	// Upsert overwrites
	require.NoError(t, st.SetValue(ctx, key, "485001"))
	value, err = st.GetValue(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "485001", value)
}
