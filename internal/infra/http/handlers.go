package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"zkcred/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type verifyRequest struct {
	Submission domain.ProofSubmission `json:"submission"`
	Expected   domain.ExpectedContext `json:"expected"`
}

type circuitActionRequest struct {
	Reason string `json:"reason"`
}

type credentialStatusRequest struct {
	Status domain.CredentialStatus `json:"status"`
}

type credentialStatusResponse struct {
	CredentialID string                  `json:"credential_id"`
	Status       domain.CredentialStatus `json:"status"`
}

const maxProofRecordLimit = 500

func (s *Server) handleRegisterCircuit(c *gin.Context) {
	if s.registry == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "circuit registry unavailable")
		return
	}
	var d domain.CircuitDescriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	registered, err := s.registry.Register(c.Request.Context(), d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registered)
}

func (s *Server) handleCircuitAction(c *gin.Context) {
	if s.registry == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "circuit registry unavailable")
		return
	}
	circuitID := c.Param("id")
	action := c.Param("action")
	if action == "sweep" {
		s.handleSweep(c, circuitID)
		return
	}

	var req circuitActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}
	ctx := c.Request.Context()
	var err error
	switch action {
	case "activate":
		err = s.registry.Activate(ctx, circuitID, req.Reason)
	case "deprecate":
		err = s.registry.Deprecate(ctx, circuitID, req.Reason)
	case "revoke":
		err = s.registry.Revoke(ctx, circuitID, req.Reason)
	default:
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	d, err := s.registry.Get(ctx, circuitID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleSweep(c *gin.Context, circuitID string) {
	if s.sweep == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "sweep unavailable")
		return
	}
	removed, err := s.sweep.Execute(c.Request.Context(), circuitID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleGetCircuit(c *gin.Context) {
	if s.registry == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "circuit registry unavailable")
		return
	}
	d, err := s.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleListCircuits(c *gin.Context) {
	if s.registry == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "circuit registry unavailable")
		return
	}
	list, err := s.registry.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.CircuitDescriptor{}
	}
	c.JSON(http.StatusOK, gin.H{"circuits": list})
}

func (s *Server) handleListProofRecords(c *gin.Context) {
	if s.records == nil || s.registry == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "proof records unavailable")
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxProofRecordLimit {
		limit = maxProofRecordLimit
	}
	circuitID := c.Param("id")
	if _, err := s.registry.Get(c.Request.Context(), circuitID); err != nil {
		writeError(c, err)
		return
	}
	records, err := s.records.ListByCircuit(c.Request.Context(), circuitID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []domain.ProofRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// handleVerifyProof always answers 200 with a result; rejection reasons are
// part of the body, not the status code.
func (s *Server) handleVerifyProof(c *gin.Context) {
	if s.verifyUC == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "verifier unavailable")
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Expected.VerifierID == "" {
		writeErrorCode(c, http.StatusBadRequest, "MISSING_FIELD", "expected.verifier_id is required")
		return
	}
	if !s.enforceRateLimit(c, routeProofsVerify, req.Expected.VerifierID) {
		return
	}
	res, err := s.verifyUC.Execute(c.Request.Context(), req.Submission, req.Expected)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleNullifier(c *gin.Context) {
	if s.nullifiers == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "nullifier ledger unavailable")
		return
	}
	value, err := domain.ParseFieldElement(c.Param("value"))
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_NULLIFIER", "nullifier must be 32 bytes of hex")
		return
	}
	consumed, err := s.nullifiers.IsConsumed(c.Request.Context(), value)
	if err != nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "nullifier ledger unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumed": consumed})
}

func (s *Server) handleGetCredentialStatus(c *gin.Context) {
	if s.statuses == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "status registry unavailable")
		return
	}
	credentialID := c.Param("id")
	status, err := s.statuses.Get(c.Request.Context(), credentialID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, credentialStatusResponse{CredentialID: credentialID, Status: status})
}

func (s *Server) handlePutCredentialStatus(c *gin.Context) {
	if s.statuses == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "status registry unavailable")
		return
	}
	var req credentialStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	credentialID := c.Param("id")
	if err := s.statuses.Set(c.Request.Context(), credentialID, req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, credentialStatusResponse{CredentialID: credentialID, Status: req.Status})
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidDescriptor):
		status, code = http.StatusBadRequest, "INVALID_DESCRIPTOR"
	case errors.Is(err, domain.ErrUnsupportedSchema):
		status, code = http.StatusBadRequest, "UNSUPPORTED_SCHEMA"
	case errors.Is(err, domain.ErrMissingField):
		status, code = http.StatusBadRequest, "MISSING_FIELD"
	case errors.Is(err, domain.ErrInvalidCredential):
		status, code = http.StatusBadRequest, "INVALID_CREDENTIAL"
	case errors.Is(err, domain.ErrCircuitNotFound), errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateCircuit):
		status, code = http.StatusConflict, "DUPLICATE_CIRCUIT"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrCircuitRevoked):
		status, code = http.StatusConflict, "CIRCUIT_REVOKED"
	case errors.Is(err, domain.ErrCircuitInactive):
		status, code = http.StatusConflict, "CIRCUIT_INACTIVE"
	case errors.Is(err, domain.ErrTransientResource):
		status, code = http.StatusServiceUnavailable, "TRANSIENT_RESOURCE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusServiceUnavailable, "CANCELLED"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
