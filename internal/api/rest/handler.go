package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/anchoring"
	"github.com/filevault/fv-registry/internal/api/middleware"
	"github.com/filevault/fv-registry/internal/api/rest/dto"
	"github.com/filevault/fv-registry/internal/capability"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/reconcile"
	"github.com/filevault/fv-registry/internal/relay"
	"github.com/filevault/fv-registry/internal/store"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// SubmitRelayRequest accepts a signed meta-transaction for forwarding
	// POST /api/v1/relay/requests
	SubmitRelayRequest(c *gin.Context)

	// GetGrant returns the reconciled view of a capability
	// GET /api/v1/grants/:cap_id
	GetGrant(c *gin.Context)

	// PredictGrant returns the capability id the next grant transaction for
	// the triple will produce
	// POST /api/v1/grants/predict
	PredictGrant(c *gin.Context)

	// CreateGrant accepts a share and records the pending grant
	// POST /api/v1/grants
	CreateGrant(c *gin.Context)

	// GetLatestAnchor returns the most recent anchor
	// GET /api/v1/anchors/latest
	GetLatestAnchor(c *gin.Context)

	// GetAnchor returns the anchor for a period
	// GET /api/v1/anchors/:period_id
	GetAnchor(c *gin.Context)

	// TriggerAnchor requests anchoring of a closed period out of cadence
	// POST /api/v1/anchors/:period_id/trigger
	TriggerAnchor(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	relay      *relay.Relay
	reconciler *reconcile.Reconciler
	predictor  *capability.Predictor
	anchoring  *anchoring.Service
	store      store.Store
}

// NewHandler creates a new REST API handler
func NewHandler(rl *relay.Relay, rec *reconcile.Reconciler, pred *capability.Predictor, anch *anchoring.Service, st store.Store) Handler {
	return &handler{
		relay:      rl,
		reconciler: rec,
		predictor:  pred,
		anchoring:  anch,
		store:      st,
	}
}

// SubmitRelayRequest accepts a signed meta-transaction for forwarding
func (h *handler) SubmitRelayRequest(c *gin.Context) {
	var req dto.SubmitRelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.relay.Submit(c.Request.Context(), req.RequestID, req.TypedData, req.Signature)
	if err != nil {
		if errors.Is(err, domain.ErrBadSignature) {
			respondWithError(c, http.StatusBadRequest, errCodeBadSignature, "Signature rejected")
			return
		}
		respondInternalError(c, err, "Failed to submit relay request",
			zap.String("request_id", req.RequestID))
		return
	}

	status := http.StatusAccepted
	if result.Status == relay.SubmitStatusDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetGrant returns the reconciled view of a capability. Only the grant's
// participants may read it; API-key callers are trusted services and skip
// the participant check.
func (h *handler) GetGrant(c *gin.Context) {
	capID := domain.CapabilityID(c.Param("cap_id"))
	if !capID.Valid() {
		respondBadRequest(c, "Invalid capability id")
		return
	}

	view, err := h.reconciler.Resolve(c.Request.Context(), capID)
	if err != nil {
		if errors.Is(err, domain.ErrGrantNotFound) {
			respondNotFound(c, "Grant not found")
			return
		}
		respondInternalError(c, err, "Failed to resolve grant",
			zap.String("cap_id", string(capID)))
		return
	}

	if callerID := middleware.CallerID(c); callerID != "" {
		if reconcile.AuthorizeExercise(view, callerID) != nil &&
			reconcile.AuthorizeRevoke(view, callerID) != nil {
			respondForbidden(c, errCodeNotGrantee, "Caller is not a participant of this grant")
			return
		}
	}

	c.JSON(http.StatusOK, dto.NewGrantResponse(view))
}

// PredictGrant returns the capability id the next grant transaction for the
// triple will produce
func (h *handler) PredictGrant(c *gin.Context) {
	var req dto.PredictGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if !common.IsHexAddress(req.Grantor) || !common.IsHexAddress(req.Grantee) {
		respondBadRequest(c, "Invalid grantor or grantee address")
		return
	}
	if !domain.FileID(req.FileID).Valid() {
		respondBadRequest(c, "Invalid file id")
		return
	}

	capID, offset, err := h.predictor.Predict(c.Request.Context(),
		common.HexToAddress(req.Grantor),
		common.HexToAddress(req.Grantee),
		domain.FileID(req.FileID))
	if err != nil {
		if errors.Is(err, domain.ErrProbeExhausted) {
			respondWithError(c, http.StatusConflict, errCodeConflict, "No free capability id for this triple")
			return
		}
		respondInternalError(c, err, "Failed to predict capability id")
		return
	}

	c.JSON(http.StatusOK, dto.PredictGrantResponse{CapID: string(capID), Offset: offset})
}

// CreateGrant accepts a share and records the pending grant under the
// predicted capability id. The grantor is the authenticated caller.
func (h *handler) CreateGrant(c *gin.Context) {
	var req dto.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	grantor := middleware.CallerID(c)
	if grantor == "" {
		respondBadRequest(c, "Grantor identity required")
		return
	}
	if !common.IsHexAddress(grantor) || !common.IsHexAddress(req.Grantee) {
		respondBadRequest(c, "Invalid grantor or grantee address")
		return
	}
	if !domain.FileID(req.FileID).Valid() {
		respondBadRequest(c, "Invalid file id")
		return
	}

	capID, _, err := h.predictor.Predict(c.Request.Context(),
		common.HexToAddress(grantor),
		common.HexToAddress(req.Grantee),
		domain.FileID(req.FileID))
	if err != nil {
		if errors.Is(err, domain.ErrProbeExhausted) {
			respondWithError(c, http.StatusConflict, errCodeConflict, "No free capability id for this triple")
			return
		}
		respondInternalError(c, err, "Failed to predict capability id")
		return
	}

	created, err := h.store.CreateGrant(c.Request.Context(), store.CreateGrantInput{
		CapID:        string(capID),
		FileID:       req.FileID,
		GrantorID:    grantor,
		GranteeID:    req.Grantee,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to record grant",
			zap.String("cap_id", string(capID)))
		return
	}
	if !created {
		respondWithError(c, http.StatusConflict, errCodeConflict, "Grant already recorded", string(capID))
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateGrantResponse{
		CapID:  string(capID),
		Status: string(domain.GrantStatusPending),
	})
}

// GetLatestAnchor returns the most recent anchor
func (h *handler) GetLatestAnchor(c *gin.Context) {
	anchor, err := h.anchoring.GetLatestAnchor(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrAnchorNotFound) {
			respondNotFound(c, "No anchors exist yet")
			return
		}
		respondInternalError(c, err, "Failed to fetch latest anchor")
		return
	}
	c.JSON(http.StatusOK, dto.NewAnchorResponse(anchor))
}

// GetAnchor returns the anchor for a period
func (h *handler) GetAnchor(c *gin.Context) {
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}

	anchor, err := h.anchoring.GetAnchor(c.Request.Context(), periodID)
	if err != nil {
		if errors.Is(err, domain.ErrAnchorNotFound) {
			respondNotFound(c, "Anchor not found")
			return
		}
		respondInternalError(c, err, "Failed to fetch anchor",
			zap.Int64("period_id", periodID))
		return
	}
	c.JSON(http.StatusOK, dto.NewAnchorResponse(anchor))
}

// TriggerAnchor requests anchoring of a closed period out of cadence
func (h *handler) TriggerAnchor(c *gin.Context) {
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}
	if periodID >= h.anchoring.CurrentPeriod() {
		respondBadRequest(c, "Period is still open")
		return
	}

	result, err := h.anchoring.Trigger(c.Request.Context(), periodID)
	if err != nil {
		respondInternalError(c, err, "Failed to trigger anchoring",
			zap.Int64("period_id", periodID))
		return
	}

	status := http.StatusAccepted
	if result.Status == anchoring.TriggerStatusAlreadyAnchored {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "fv-registry-api",
	})
}

func parsePeriodID(c *gin.Context) (int64, bool) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil || periodID < 0 {
		respondBadRequest(c, "Invalid period id")
		return 0, false
	}
	return periodID, true
}
