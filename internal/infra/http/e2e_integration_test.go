//go:build integration
// +build integration

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"nftcate/internal/config"
	"nftcate/internal/domain"
	"nftcate/internal/infra/cidutil"
	"nftcate/internal/infra/contentmem"
	"nftcate/internal/infra/db"
	"nftcate/internal/infra/ledgermem"
	"nftcate/internal/usecase"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestIssueVerifyList_DBBacked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dbConn := setupTestDB(t)
	resetDB(t, dbConn)
	server, _ := newDBBackedServer(t, dbConn)

	minted := postMint(t, server, http.StatusOK)
	var mintResp mintResponse
	decodeBody(t, minted, &mintResp)
	if mintResp.Record.ID == "" || mintResp.Record.Transaction != mintResp.Transaction {
		t.Fatalf("unexpected record: %+v", mintResp.Record)
	}

	verifyRec := postJSON(t, server, "/certificate/verify", verifyRequest{Link: "ipfs://" + mintResp.MetadataCID})
	if verifyRec.Code != http.StatusOK {
		t.Fatalf("verify status %d: %s", verifyRec.Code, verifyRec.Body.String())
	}
	var verifyResp verifyResponse
	decodeBody(t, verifyRec, &verifyResp)
	if verifyResp.Record == nil || verifyResp.Record.ID != mintResp.Record.ID {
		t.Fatalf("verify did not link record: %+v", verifyResp.Record)
	}

	listRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/certificates?issuer=inst-1", nil))
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", listRec.Code, listRec.Body.String())
	}
	var listResp listResponse
	decodeBody(t, listRec, &listResp)
	if len(listResp.Certificates) != 1 || listResp.Certificates[0].OwnerID != "student-1" {
		t.Fatalf("unexpected listing: %+v", listResp.Certificates)
	}
}

func TestTimeoutResume_DBBacked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dbConn := setupTestDB(t)
	resetDB(t, dbConn)
	server, ledger := newDBBackedServer(t, dbConn)
	ledger.Script(func(domain.ContractCall) ledgermem.Outcome {
		return ledgermem.Outcome{Pending: true}
	})

	failed := postMint(t, server, http.StatusInternalServerError)
	var failure errorResponse
	decodeBody(t, failed, &failure)
	if failure.Code != "CONFIRMATION_TIMEOUT" {
		t.Fatalf("expected confirmation timeout, got %+v", failure)
	}
	txHash, _ := failure.Details["transaction"].(string)
	if err := ledger.Settle(txHash, domain.TxStatusConfirmed); err != nil {
		t.Fatalf("settle: %v", err)
	}

	resume := resumeRequest{
		Institution: "inst-1",
		Student:     "student-1",
		Transaction: txHash,
		ImageCID:    failure.Details["artifactCid"].(string),
		MetadataCID: failure.Details["metadataCid"].(string),
	}
	if rec := postJSON(t, server, "/certificate/resume", resume); rec.Code != http.StatusOK {
		t.Fatalf("resume status %d: %s", rec.Code, rec.Body.String())
	}
	if rec := postJSON(t, server, "/certificate/resume", resume); rec.Code != http.StatusConflict {
		t.Fatalf("second resume status %d: %s", rec.Code, rec.Body.String())
	}

	var count int64
	if err := dbConn.Model(&db.CertificateModel{}).Where("tx_hash = ?", txHash).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one record for %s, got %d", txHash, count)
	}
}

func newDBBackedServer(t *testing.T, dbConn *gorm.DB) (*Server, *ledgermem.Ledger) {
	t.Helper()
	ctx := context.Background()
	directory := db.NewIdentityDirectory(dbConn)
	records := db.NewCertificateRepository(dbConn)

	if err := directory.Issuers.Upsert(ctx, domain.Issuer{
		ID:         "inst-1",
		Name:       "Example University",
		Type:       domain.IssuerTypeUniversity,
		Email:      "registrar@example.edu",
		Verified:   true,
		Address:    "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		SigningKey: domain.KeyRef{Owner: "inst-1", KID: "primary"},
	}); err != nil {
		t.Fatalf("upsert issuer: %v", err)
	}
	if err := directory.Recipients.Upsert(ctx, domain.Recipient{
		ID:            "student-1",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.edu",
		Address:       "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		InstitutionID: "inst-1",
	}); err != nil {
		t.Fatalf("upsert recipient: %v", err)
	}

	content := contentmem.New()
	ledger := ledgermem.New(nil)
	server := NewServer(config.Config{AuthMode: "none"}, ServerDeps{
		Issue: &usecase.IssueCertificate{
			Identities:          directory,
			Content:             content,
			Ledger:              ledger,
			Records:             records,
			ConfirmationTimeout: 50 * time.Millisecond,
		},
		Resume: &usecase.ResumeCertificate{
			Identities:          directory,
			Content:             content,
			Ledger:              ledger,
			Records:             records,
			Locators:            cidutil.Service{},
			ConfirmationTimeout: time.Second,
		},
		Verify: &usecase.VerifyCertificate{
			Content:  content,
			Records:  records,
			Locators: cidutil.Service{},
		},
		Query:      &usecase.CertificateQuery{Records: records},
		Ledger:     ledger,
		GatewayURL: "https://ipfs.io",
	})
	return server, ledger
}

func postMint(t *testing.T, server *Server, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"name":        "BSc Computer Science",
		"description": "Conferred with honours",
		"institution": "inst-1",
		"student":     "student-1",
	} {
		if err := form.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := form.CreateFormFile("image", "diploma.png")
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := part.Write([]byte("\x89PNG\r\n\x1a\n diploma scan")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/certificate/mint", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("mint status %d, want %d: %s", rec.Code, wantStatus, rec.Body.String())
	}
	return rec
}

func postJSON(t *testing.T, server *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	dbConn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := (&db.Store{DB: dbConn}).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbConn
}

func resetDB(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	if err := dbConn.Exec(`TRUNCATE issuers, recipients, certificates RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
