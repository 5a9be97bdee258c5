package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"
	"stock-transfer-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// TransferHandler 在庫移動提案APIのハンドラ
type TransferHandler struct {
	service        *services.TransferService
	maxUploadBytes int64
	logger         *logger.Logger
}

// NewTransferHandler 新しいTransferHandlerを作成
func NewTransferHandler(service *services.TransferService, maxUploadMB int, log *logger.Logger) *TransferHandler {
	if log == nil {
		log = logger.Nop()
	}
	if maxUploadMB < 1 {
		maxUploadMB = 10
	}
	return &TransferHandler{
		service:        service,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         log,
	}
}

// Analyze アップロードされたレポートを分析して提案をJSONで返す
func (h *TransferHandler) Analyze(c *gin.Context) {
	file, fileName, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	defer file.Close()

	analysis, err := h.service.AnalyzeReport(c.Request.Context(), fileName, file)
	if err != nil {
		h.respondReportError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    analysis,
	})
}

// Export アップロードされたレポートを分析してxlsxをダウンロードさせる
func (h *TransferHandler) Export(c *gin.Context) {
	file, fileName, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	defer file.Close()

	// 書き込み失敗時にJSONで返せるよう、一度バッファに書き出す
	var buf bytes.Buffer
	analysis, err := h.service.ExportReport(c.Request.Context(), fileName, file, &buf)
	if err != nil {
		h.respondReportError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFileName))
	c.Header("X-Run-ID", analysis.RunID)
	c.Data(http.StatusOK, services.ExportContentType, buf.Bytes())
}

// Evaluate 正規化済みのレコードをJSONで受け取って評価する
// ?policy=halt の場合は最初の不正レコードで422を返す
func (h *TransferHandler) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	policy := services.SkipInvalid
	switch c.DefaultQuery("policy", "skip") {
	case "skip":
	case "halt":
		policy = services.HaltOnError
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "policy must be 'skip' or 'halt'",
		})
		return
	}

	res, err := h.service.EvaluateRecords(c.Request.Context(), req.Records, req.Locations, policy)
	if err != nil {
		var recErr services.RecordError
		switch {
		case errors.As(err, &recErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success":      false,
				"error":        recErr.Error(),
				"kind":         recErr.Kind(),
				"index":        recErr.Index,
				"product_code": recErr.ProductCode,
			})
		case errors.Is(err, services.ErrEmptyLocationSet), errors.Is(err, services.ErrDuplicateLocation):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			h.logger.Error().Err(err).Msg("❌ 評価エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "evaluation failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"suggestions":     res.Suggestions,
		"skipped_records": services.ToSkipped(res.Skipped),
		"summary":         h.service.Summarize(res.Suggestions),
	})
}

// Locations 設定されている店舗の正規順を返す
func (h *TransferHandler) Locations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"locations": h.service.Locations(),
	})
}

func (h *TransferHandler) uploadedFile(c *gin.Context) (multipart.File, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"success": false, "error": fmt.Sprintf("failed to read upload: %v", err)})
		return nil, "", false
	}

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "form field 'file' is required"})
		return nil, "", false
	}
	return file, fileHeader.Filename, true
}

func (h *TransferHandler) respondReportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, services.ErrReportLayout),
		errors.Is(err, services.ErrUnreadableReport):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		h.logger.Error().Err(err).Msg("❌ レポート処理エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to process report"})
	}
}
