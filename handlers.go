package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/app"
	"loyalty/pkg/pipeline"
	"loyalty/pkg/repository"
	"loyalty/pkg/rewards"
	"loyalty/pkg/settings"
	"loyalty/process/report"
)

type server struct {
	app       *app.App
	jwtSecret []byte
	maxUpload int64
	logger    *zap.Logger
}

func newServer(a *app.App, jwtSecret []byte, maxUpload int64) *server {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &server{app: a, jwtSecret: jwtSecret, maxUpload: maxUpload, logger: a.Logger.Named("http")}
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.POST("/receipts", s.uploadReceiptHandler)
	r.POST("/receipts/:id/review-request", s.reviewRequestHandler)
	r.GET("/stores", s.listStoresHandler)
	r.GET("/rewards/:code", s.getRewardHandler)
	r.GET("/rewards/:code/qr", s.rewardQRHandler)

	staff := r.Group("/rewards")
	staff.Use(jwtAuthMiddleware(s.jwtSecret, roleAdministrator, roleStoreStaff))
	staff.POST("/:code/redeem", s.redeemRewardHandler)
	staff.POST("/:code/use", s.useRewardHandler)

	admin := r.Group("/admin")
	admin.Use(jwtAuthMiddleware(s.jwtSecret, roleAdministrator))
	admin.GET("/settings", s.getSettingsHandler)
	admin.PUT("/settings", s.updateSettingsHandler)
	admin.POST("/stores", s.createStoreHandler)
	admin.GET("/receipts/export", s.exportReceiptsHandler)
	admin.GET("/receipts/:id", s.getReceiptHandler)
	admin.POST("/receipts/:id/review", s.reviewReceiptHandler)
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// uploadReceiptHandler runs one upload through the pipeline. Every decision
// is a 200; only an internal failure is a 500, and its body is still the
// generic result.
func (s *server) uploadReceiptHandler(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image missing"})
		return
	}
	if file.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("image too large (max %d bytes)", s.maxUpload)})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
		return
	}
	defer f.Close()
	buf, err := io.ReadAll(io.LimitReader(f, s.maxUpload))
	if err != nil || len(buf) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
		return
	}

	in := pipeline.Input{
		Image:         buf,
		Filename:      file.Filename,
		Store:         pipeline.ResolveByTIN(),
		CustomerPhone: strings.TrimSpace(c.PostForm("phone")),
		CustomerName:  strings.TrimSpace(c.PostForm("name")),
	}
	if v := c.PostForm("store_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store_id"})
			return
		}
		in.Store = pipeline.ExplicitStore(uint(id))
	}

	res, err := s.app.Validator.Validate(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) reviewRequestHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.app.Validator.RequestManualReview(c.Request.Context(), id, strings.TrimSpace(req.Phone))
	if err != nil {
		s.reviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) reviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrReceiptNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrNotReviewable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrStoreRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("review failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "review failed"})
	}
}

// listStoresHandler returns the stores a receipt with the given TIN could
// belong to, for the store selection step.
func (s *server) listStoresHandler(c *gin.Context) {
	tin := models.DigitsOnly(c.Query("tin"))
	if tin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tin required"})
		return
	}
	if !settings.IsTINAllowed(s.app.Settings.Get(c.Request.Context()), tin) {
		c.JSON(http.StatusOK, []models.Store{})
		return
	}
	stores, err := s.app.Repo.FindUploadableStoresByTIN(c.Request.Context(), tin)
	if err != nil {
		s.logger.Error("list stores", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, stores)
}

func (s *server) rewardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rewards.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, rewards.ErrWrongStore):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, rewards.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, rewards.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("reward request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reward request failed"})
	}
}

func (s *server) getRewardHandler(c *gin.Context) {
	rw, err := s.app.Rewards.Find(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.rewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, rw)
}

func (s *server) rewardQRHandler(c *gin.Context) {
	rw, err := s.app.Rewards.Find(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.rewardError(c, err)
		return
	}
	size := rewards.DefaultQRSize
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v >= 64 && v <= 1024 {
		size = v
	}
	png, err := rewards.QRCodePNG(rw.Code, size)
	if err != nil {
		s.logger.Error("qr encode", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr encode failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type storeRequest struct {
	StoreID uint `json:"store_id" binding:"required"`
}

func (s *server) redeemRewardHandler(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rw, err := s.app.Rewards.Redeem(c.Request.Context(), c.Param("code"), req.StoreID)
	if err != nil {
		s.rewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, rw)
}

func (s *server) useRewardHandler(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rw, err := s.app.Rewards.MarkUsed(c.Request.Context(), c.Param("code"), req.StoreID)
	if err != nil {
		s.rewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, rw)
}

func (s *server) getSettingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Settings.Get(c.Request.Context()))
}

func (s *server) updateSettingsHandler(c *gin.Context) {
	var req settings.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := s.app.Settings.Update(c.Request.Context(), req, currentAdmin(c))
	if err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("update settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *server) createStoreHandler(c *gin.Context) {
	var st models.Store
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.ID = 0
	if strings.TrimSpace(st.Name) == "" || models.DigitsOnly(st.TIN) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and tin are required"})
		return
	}
	if err := s.app.Repo.CreateStore(c.Request.Context(), &st); err != nil {
		s.logger.Error("create store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *server) getReceiptHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rc, err := s.app.Repo.FindReceiptByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, rc)
}

func (s *server) reviewReceiptHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Approve *bool  `json:"approve" binding:"required"`
		Notes   string `json:"notes"`
		StoreID *uint  `json:"store_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.app.Validator.Review(c.Request.Context(), id, pipeline.Decision{
		Approve: *req.Approve,
		By:      currentAdmin(c),
		Notes:   req.Notes,
		StoreID: req.StoreID,
	})
	if err != nil {
		s.reviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// exportReceiptsHandler sends the month's receipt report as xlsx.
func (s *server) exportReceiptsHandler(c *gin.Context) {
	month := c.Query("month")
	if _, _, err := report.MonthRange(month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rep, err := report.Build(c.Request.Context(), s.app.Repo, month)
	if err != nil {
		s.logger.Error("export report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	b, err := rep.XLSX()
	if err != nil {
		s.logger.Error("render xlsx", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipts-%s.xlsx"`, month))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}
