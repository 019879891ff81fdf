package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"loyalty/models"
	"loyalty/pkg/app"
	"loyalty/pkg/dbtest"
	"loyalty/pkg/pipeline"
	"loyalty/pkg/storage"
)

var testSecret = []byte("test-secret")

type scriptedOCR struct{ text string }

func (s *scriptedOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	return s.text, nil
}

type testEnv struct {
	r     *gin.Engine
	app   *app.App
	ocr   *scriptedOCR
	store models.Store
}

func setupRouter(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	fake := &scriptedOCR{}
	a := app.New(db, app.Options{OCR: fake, Storage: local}, nil)
	env := &testEnv{r: gin.New(), app: a, ocr: fake}
	newServer(a, testSecret, 1<<20).setupRoutes(env.r)

	env.store = models.Store{Name: "SM Supermarket", Branch: "Makati City", TIN: "0003169685", Active: true, AllowReceiptUploads: true}
	require.NoError(t, a.Repo.CreateStore(context.Background(), &env.store))
	return env
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "ops@example.com",
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

// performRequest sends body (JSON-encoded unless it is an io.Reader) with an
// optional bearer token.
func performRequest(r http.Handler, method, path string, body interface{}, token, contentType string) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		rd = b
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
		contentType = "application/json"
	}
	req := httptest.NewRequest(method, path, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func uploadForm(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		w, err := mw.CreateFormFile("image", "receipt.jpg")
		require.NoError(t, err)
		_, err = w.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func receiptText(invoice, total string) string {
	return fmt.Sprintf("SM SUPERMARKET\nBranch: Makati City\nTIN: 000-316-968-5\nInvoice No: %s\nDate: %s\nTOTAL %s\n",
		invoice, time.Now().UTC().Format("2006-01-02"), total)
}

func (e *testEnv) upload(t *testing.T, fields map[string]string, text string, image []byte) (*httptest.ResponseRecorder, pipeline.Result) {
	t.Helper()
	e.ocr.text = text
	body, ct := uploadForm(t, fields, image)
	rec := performRequest(e.r, http.MethodPost, "/receipts", body, "", ct)
	var res pipeline.Result
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec, res
}

func TestUploadReceipt(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))

	rec, _ := env.upload(t, map[string]string{"phone": "09171234567"}, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, res := env.upload(t, map[string]string{"phone": "09171234567"}, receiptText("SI-1", "504.00"), []byte("photo-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, res.Success)
	require.Equal(t, models.ReceiptApproved, res.Status)
	require.Equal(t, env.store.ID, *res.StoreID)
	require.Equal(t, 1, *res.VisitCount)

	rec, res = env.upload(t, map[string]string{"store_id": fmt.Sprint(env.store.ID)}, receiptText("SI-2", "20.00"), []byte("photo-2"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.ReceiptRejected, res.Status)
	require.Equal(t, "totalAmount", res.RejectionDetails[0].Field)

	rec, _ = env.upload(t, map[string]string{"store_id": "abc"}, receiptText("SI-3", "504.00"), []byte("photo-3"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStores(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))

	rec := performRequest(env.r, http.MethodGet, "/stores?tin=000-316-968-5", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stores []models.Store
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stores))
	require.Len(t, stores, 1)

	rec = performRequest(env.r, http.MethodGet, "/stores?tin=111222333", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = performRequest(env.r, http.MethodGet, "/stores", nil, "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRequiresAdministrator(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))

	rec := performRequest(env.r, http.MethodGet, "/admin/settings", nil, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performRequest(env.r, http.MethodGet, "/admin/settings", nil, "not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performRequest(env.r, http.MethodGet, "/admin/settings", nil, adminToken(t, "user"), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = performRequest(env.r, http.MethodGet, "/admin/settings", nil, adminToken(t, roleStoreStaff), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = performRequest(env.r, http.MethodGet, "/admin/settings", nil, adminToken(t, roleAdministrator), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"allowedTins":["0003169685"]`)
}

func TestAdminUpdateSettings(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))
	token := adminToken(t, roleAdministrator)

	body := map[string]interface{}{
		"allowedTins":                 []string{"000-316-968-5", "123456789"},
		"minReceiptAmount":            "250",
		"receiptValidityHours":        48,
		"visitLimitHours":             12,
		"requiredVisits":              3,
		"rewardPeriodDays":            30,
		"discountPercent":             15,
		"rewardExpirationDays":        30,
		"claimedRewardExpirationDays": 14,
	}
	rec := performRequest(env.r, http.MethodPut, "/admin/settings", body, token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := env.app.Settings.Get(context.Background())
	require.Equal(t, []string{"0003169685", "123456789"}, got.AllowedTINs)
	require.Equal(t, "250.00", got.MinReceiptAmount.StringFixed(2))
	require.Equal(t, "ops@example.com", got.UpdatedBy)

	body["discountPercent"] = 0
	rec = performRequest(env.r, http.MethodPut, "/admin/settings", body, token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewFlow(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))
	token := adminToken(t, roleAdministrator)

	// no TIN on the receipt: flagged for review without a store
	text := fmt.Sprintf("SM SUPERMARKET\nInvoice No: SI-9\nDate: %s\nTOTAL 504.00\n", time.Now().UTC().Format("2006-01-02"))
	_, res := env.upload(t, map[string]string{"phone": "09171234567"}, text, []byte("photo-9"))
	require.Equal(t, models.ReceiptFlagged, res.Status)
	id := *res.ReceiptID

	rec := performRequest(env.r, http.MethodPost, fmt.Sprintf("/receipts/%d/review-request", id), map[string]string{"phone": "0999"}, "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = performRequest(env.r, http.MethodPost, fmt.Sprintf("/receipts/%d/review-request", id), map[string]string{"phone": "09171234567"}, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(env.r, http.MethodPost, fmt.Sprintf("/admin/receipts/%d/review", id), map[string]interface{}{"approve": true}, token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = performRequest(env.r, http.MethodPost, fmt.Sprintf("/admin/receipts/%d/review", id),
		map[string]interface{}{"approve": true, "notes": "ok", "store_id": env.store.ID}, token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = performRequest(env.r, http.MethodGet, fmt.Sprintf("/admin/receipts/%d", id), nil, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rc models.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rc))
	require.Equal(t, models.ReceiptApproved, rc.Status)
	require.Equal(t, "ops@example.com", *rc.ReviewedBy)

	rec = performRequest(env.r, http.MethodPost, fmt.Sprintf("/admin/receipts/%d/review", id), map[string]interface{}{"approve": false}, token, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = performRequest(env.r, http.MethodGet, "/admin/receipts/999", nil, token, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRewardEndpoints(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))
	ctx := context.Background()
	c, err := env.app.Repo.FindOrCreateCustomer(ctx, "09171234567", "")
	require.NoError(t, err)
	now := time.Now().UTC()
	rw := &models.Reward{
		CustomerID: c.ID, StoreID: env.store.ID, Code: "RW-ABCDEF1234", RewardType: models.RewardTypeDiscount,
		IssuedAt: now, ClaimedAt: &now, ExpiresAt: now.Add(24 * time.Hour), Status: models.RewardClaimed, DiscountPercent: 10,
	}
	require.NoError(t, env.app.Repo.CreateReward(ctx, rw))

	rec := performRequest(env.r, http.MethodGet, "/rewards/RW-ABCDEF1234/qr", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = performRequest(env.r, http.MethodGet, "/rewards/RW-NOPE/qr", nil, "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := map[string]uint{"store_id": env.store.ID}
	for _, path := range []string{"/rewards/RW-ABCDEF1234/redeem", "/rewards/RW-ABCDEF1234/use"} {
		rec = performRequest(env.r, http.MethodPost, path, body, "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec = performRequest(env.r, http.MethodPost, "/rewards/RW-ABCDEF1234/redeem", body, adminToken(t, "customer"), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	staff := adminToken(t, roleStoreStaff)
	rec = performRequest(env.r, http.MethodPost, "/rewards/RW-ABCDEF1234/use", body, staff, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = performRequest(env.r, http.MethodPost, "/rewards/RW-ABCDEF1234/redeem", map[string]uint{"store_id": env.store.ID + 1}, staff, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = performRequest(env.r, http.MethodPost, "/rewards/RW-ABCDEF1234/redeem", body, staff, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = performRequest(env.r, http.MethodPost, "/rewards/RW-ABCDEF1234/use", body, adminToken(t, roleAdministrator), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(env.r, http.MethodGet, "/rewards/RW-ABCDEF1234", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"used"`)
}

func TestExportReceipts(t *testing.T) {
	env := setupRouter(t, dbtest.Open(t))
	token := adminToken(t, roleAdministrator)
	_, res := env.upload(t, map[string]string{}, receiptText("SI-77", "504.00"), []byte("photo-77"))
	require.True(t, res.Success)

	rec := performRequest(env.r, http.MethodGet, "/admin/receipts/export?month=bad", nil, token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	month := time.Now().UTC().Format("2006-01")
	rec = performRequest(env.r, http.MethodGet, "/admin/receipts/export?month="+month, nil, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "receipts-"+month+".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	inv, err := f.GetCellValue("Receipts", "G2")
	require.NoError(t, err)
	require.Equal(t, "SI-77", inv)
}
