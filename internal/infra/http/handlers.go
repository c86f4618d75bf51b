package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"nftcate/internal/domain"
	"nftcate/internal/infra/auth/rbac"
	"nftcate/internal/observability/logger"
	"nftcate/internal/usecase"

	"github.com/gin-gonic/gin"
)

const (
	// multipartOverhead covers form fields and boundaries on top of the artifact cap.
	multipartOverhead = 1 << 20
	maxFormMemory     = 32 << 20
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type mintResponse struct {
	Message     string                     `json:"message"`
	Transaction string                     `json:"transaction"`
	TokenID     string                     `json:"tokenId,omitempty"`
	MetadataURL string                     `json:"metadataUrl"`
	ImageCID    string                     `json:"imageCid"`
	MetadataCID string                     `json:"metadataCid"`
	Record      domain.CertificateRecord   `json:"record"`
	Metadata    domain.CertificateMetadata `json:"metadata"`
	Existing    bool                       `json:"alreadyRecorded,omitempty"`
}

type resumeRequest struct {
	Institution string `json:"institution"`
	Student     string `json:"student"`
	Transaction string `json:"transaction"`
	ImageCID    string `json:"imageCid"`
	MetadataCID string `json:"metadataCid"`
}

type resumeResponse struct {
	Message     string                   `json:"message"`
	Transaction string                   `json:"transaction"`
	Record      domain.CertificateRecord `json:"record"`
}

type verifyRequest struct {
	Link string `json:"link"`
}

type verifyResponse struct {
	Message  string                      `json:"message"`
	CID      string                      `json:"cid"`
	Metadata *domain.CertificateMetadata `json:"metadata"`
	Record   *domain.CertificateRecord   `json:"record,omitempty"`
}

type listResponse struct {
	Certificates []domain.CertificateRecord `json:"certificates"`
}

type issuerRegistrationResponse struct {
	Address    string `json:"address"`
	Registered bool   `json:"registered"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMint(c *gin.Context) {
	if s.issueUC == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "issuance not configured")
		return
	}
	if limit := s.cfg.MaxArtifactBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(c, http.StatusRequestEntityTooLarge, "ARTIFACT_TOO_LARGE", "artifact exceeds upload limit")
			return
		}
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FORM", "expected a multipart form")
		return
	}
	institution := strings.TrimSpace(c.PostForm("institution"))
	principal, ok := s.requireAuth(c, rbac.PermissionMint, institution)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeMint, principal) {
		return
	}

	artifact, artifactName, err := readArtifact(c)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}

	resp, err := s.issueUC.Execute(c.Request.Context(), usecase.IssueCertificateRequest{
		IssuerID:     institution,
		RecipientID:  strings.TrimSpace(c.PostForm("student")),
		Name:         strings.TrimSpace(c.PostForm("name")),
		Description:  strings.TrimSpace(c.PostForm("description")),
		Artifact:     artifact,
		ArtifactName: artifactName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mintResponse{
		Message:     "certificate issued",
		Transaction: resp.Transaction.Hash,
		TokenID:     resp.Transaction.TokenID,
		MetadataURL: resp.Record.MetadataLocator.GatewayURL(s.gateway),
		ImageCID:    resp.Record.ImageLocator.String(),
		MetadataCID: resp.Record.MetadataLocator.String(),
		Record:      resp.Record,
		Metadata:    resp.Metadata,
		Existing:    resp.AlreadyRecorded,
	})
}

// readArtifact returns the uploaded file from the "image" part, or "artifact".
// A request without either yields nil bytes and lets the use case report it.
func readArtifact(c *gin.Context) ([]byte, string, error) {
	var (
		header *multipart.FileHeader
		err    error
	)
	for _, field := range []string{"image", "artifact"} {
		header, err = c.FormFile(field)
		if err == nil {
			break
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, "", err
		}
	}
	if header == nil {
		return nil, "", nil
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func (s *Server) handleResume(c *gin.Context) {
	if s.resumeUC == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "resume not configured")
		return
	}
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	principal, ok := s.requireAuth(c, rbac.PermissionResume, req.Institution)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeResume, principal) {
		return
	}
	resp, err := s.resumeUC.Execute(c.Request.Context(), usecase.ResumeCertificateRequest{
		IssuerID:        strings.TrimSpace(req.Institution),
		RecipientID:     strings.TrimSpace(req.Student),
		TxHash:          strings.TrimSpace(req.Transaction),
		ArtifactLocator: domain.Locator(strings.TrimSpace(req.ImageCID)),
		MetadataLocator: domain.Locator(strings.TrimSpace(req.MetadataCID)),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resumeResponse{
		Message:     "certificate recorded",
		Transaction: resp.Transaction.Hash,
		Record:      resp.Record,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.verifyUC == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "verification not configured")
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if !s.enforceRateLimit(c, routeVerify, domain.Principal{}) {
		return
	}
	result, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyCertificateRequest{Link: req.Link})
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Valid {
		status := http.StatusUnprocessableEntity
		message := "certificate metadata is invalid"
		if result.Reason == domain.VerificationReasonNotPinned {
			status = http.StatusNotFound
			message = "certificate content is not pinned"
		}
		c.JSON(status, errorResponse{
			Code:    string(result.Reason),
			Message: message,
			Details: map[string]any{"cid": result.Locator.String(), "valid": false},
		})
		return
	}
	c.JSON(http.StatusOK, verifyResponse{
		Message:  "certificate is valid",
		CID:      result.Locator.String(),
		Metadata: result.Metadata,
		Record:   result.Record,
	})
}

func (s *Server) handleListCertificates(c *gin.Context) {
	if s.query == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "records not configured")
		return
	}
	owner := strings.TrimSpace(c.Query("owner"))
	issuer := strings.TrimSpace(c.Query("issuer"))
	ctx := c.Request.Context()

	var (
		records []domain.CertificateRecord
		err     error
	)
	switch {
	case owner != "" && issuer == "":
		if _, ok := s.requireAuth(c, rbac.PermissionListOwned, owner); !ok {
			return
		}
		records, err = s.query.ByOwner(ctx, owner)
	case issuer != "" && owner == "":
		if _, ok := s.requireAuth(c, rbac.PermissionListIssued, issuer); !ok {
			return
		}
		records, err = s.query.ByIssuer(ctx, issuer)
	default:
		writeErrorCode(c, http.StatusBadRequest, "INVALID_QUERY", "exactly one of owner or issuer is required")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []domain.CertificateRecord{}
	}
	c.JSON(http.StatusOK, listResponse{Certificates: records})
}

func (s *Server) handleIssuerRegistration(c *gin.Context) {
	if s.ledger == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "ledger not configured")
		return
	}
	address, ok := s.ledger.NormalizeAddress(c.Param("address"))
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ADDRESS", "address is not a valid ledger address")
		return
	}
	registered, err := s.ledger.IsRegisteredIssuer(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuerRegistrationResponse{Address: address, Registered: registered})
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Code: code, Message: err.Error()}

	var denial *domain.PolicyDenial
	if errors.As(err, &denial) && len(denial.Deny) > 0 {
		resp.Details = map[string]any{"deny": denial.Deny}
	}
	if stageErr, ok := domain.AsStageError(err); ok {
		if !errors.Is(err, domain.ErrTransactionMismatch) {
			status = http.StatusInternalServerError
		}
		resp.Details = stageDetails(stageErr)
	}
	if status >= http.StatusInternalServerError {
		logger.From(c.Request.Context()).Warn("request error", logger.Err(err), logger.Status(status))
	}
	c.JSON(status, resp)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return http.StatusBadRequest, "MISSING_FIELD"
	case errors.Is(err, domain.ErrMissingArtifact):
		return http.StatusBadRequest, "MISSING_ARTIFACT"
	case errors.Is(err, domain.ErrInvalidLink):
		return http.StatusBadRequest, "INVALID_LINK"
	case errors.Is(err, domain.ErrRecipientHasNoWallet):
		return http.StatusBadRequest, "RECIPIENT_HAS_NO_WALLET"
	case errors.Is(err, domain.ErrUnauthorizedIssuer):
		return http.StatusForbidden, "UNAUTHORIZED_ISSUER"
	case errors.Is(err, domain.ErrPolicyDenied):
		return http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrRecipientNotFound):
		return http.StatusNotFound, "RECIPIENT_NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return http.StatusConflict, "DUPLICATE_TRANSACTION"
	case errors.Is(err, domain.ErrTransactionMismatch):
		return http.StatusUnprocessableEntity, "TRANSACTION_MISMATCH"
	case errors.Is(err, domain.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout, "CONFIRMATION_TIMEOUT"
	case errors.Is(err, domain.ErrTransactionFailed):
		return http.StatusBadGateway, "TRANSACTION_FAILED"
	case errors.Is(err, domain.ErrRejected):
		return http.StatusBadGateway, "LEDGER_REJECTED"
	case errors.Is(err, domain.ErrSigning):
		return http.StatusInternalServerError, "SIGNING_FAILED"
	case errors.Is(err, domain.ErrRPCUnavailable):
		return http.StatusBadGateway, "LEDGER_UNAVAILABLE"
	case errors.Is(err, domain.ErrStoreRejected):
		return http.StatusBadGateway, "STORE_REJECTED"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusBadGateway, "STORE_UNAVAILABLE"
	case errors.Is(err, domain.ErrContentNotFound):
		return http.StatusNotFound, "CONTENT_NOT_FOUND"
	case errors.Is(err, domain.ErrRecordStoreUnavailable):
		return http.StatusServiceUnavailable, "RECORD_STORE_UNAVAILABLE"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func stageDetails(stageErr *domain.StageError) map[string]any {
	details := map[string]any{
		"stage":     string(stageErr.Stage),
		"class":     string(domain.Classify(stageErr.Err)),
		"retryable": domain.Retryable(stageErr.Err),
		"summary":   stageSummary(stageErr),
	}
	if p := stageErr.Progress; !p.ArtifactLocator.IsZero() {
		details["artifactCid"] = p.ArtifactLocator.String()
	}
	if p := stageErr.Progress; !p.MetadataLocator.IsZero() {
		details["metadataCid"] = p.MetadataLocator.String()
	}
	if p := stageErr.Progress; p.TxHash != "" {
		details["transaction"] = p.TxHash
	}
	return details
}

// stageSummary names what failed and what the caller can do with the progress.
func stageSummary(stageErr *domain.StageError) string {
	p := stageErr.Progress
	switch stageErr.Stage {
	case domain.StageUploadArtifact:
		return "artifact upload failed; nothing was pinned"
	case domain.StageUploadMetadata:
		return fmt.Sprintf("metadata upload failed; artifact %s is pinned", p.ArtifactLocator)
	case domain.StageSubmit:
		if p.TxHash != "" {
			return fmt.Sprintf("mint broadcast outcome unknown; resume with transaction %s", p.TxHash)
		}
		return fmt.Sprintf("mint was not submitted; metadata %s is pinned", p.MetadataLocator)
	case domain.StageConfirm:
		if domain.Classify(stageErr.Err) == domain.ErrorClassUnknownOutcome {
			return fmt.Sprintf("transaction %s not confirmed in time; resume with it", p.TxHash)
		}
		return fmt.Sprintf("transaction %s did not mint", p.TxHash)
	case domain.StagePersist:
		return fmt.Sprintf("transaction %s confirmed but the record was not saved; resume with it", p.TxHash)
	default:
		return fmt.Sprintf("stage %s failed", stageErr.Stage)
	}
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
