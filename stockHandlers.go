package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/models"
	"github.com/graintrack/mill_backend/models/reports"
	"github.com/graintrack/mill_backend/utils"
	"github.com/graintrack/mill_backend/workflow"
	"github.com/sirupsen/logrus"
)

func recordStockTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.NewStockTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		transaction, err := models.RecordStockTransaction(c.Request.Context(), millId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, transaction, "created")
	}
}

func stockBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		commodity := models.Commodity(c.Query("commodity"))
		if commodity == "" {
			respondBadRequest(c, "commodity is required")
			return
		}
		variety := c.Query("variety")

		var asOf *time.Time
		asOfDate, err := models.ParseDateString(c.Query("asOf"))
		if err != nil {
			respondBadRequest(c, "invalid asOf")
			return
		}
		if asOfDate != nil {
			timezone := models.MillTimezone(c.Request.Context(), millId)
			if err := asOfDate.EndOfDayUTCTime(timezone); err != nil {
				respondError(c, err)
				return
			}
			t := time.Time(*asOfDate)
			asOf = &t
		}

		balance, err := models.GetStockBalance(c.Request.Context(), millId, commodity, variety, asOf)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{
			"commodity": commodity,
			"variety":   variety,
			"balance":   balance,
		}, "")
	}
}

func stockLedgerSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		startDate, endDate, err := parseDateRange(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var commodity *models.Commodity
		if v := c.Query("commodity"); v != "" {
			cm := models.Commodity(v)
			commodity = &cm
		}
		summary, err := models.GetStockLedgerSummary(c.Request.Context(), millId, commodity, startDate, endDate)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, summary, "")
	}
}

func currentStocksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		stocks, err := models.GetCurrentStocks(c.Request.Context(), millId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, stocks, "")
	}
}

func stockPostingStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		refModel := models.StockReferenceType(c.Query("refModel"))
		refId := 0
		fmt.Sscanf(c.Query("refId"), "%d", &refId)
		if refModel == "" || refId <= 0 {
			respondBadRequest(c, "refModel and refId are required")
			return
		}
		record, err := models.GetStockPostingStatus(c.Request.Context(), millId, refModel, refId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{
			"recordId":  record.ID,
			"status":    record.Status,
			"attempts":  record.Attempts,
			"lastError": utils.DereferencePtr(record.LastError),
			"postedAt":  record.PostedAt,
		}, "")
	}
}

type outboxReplayRequest struct {
	MillId   string `json:"millId"`
	RecordId int    `json:"recordId"`
}

// Ops tooling (admin only): requeue outbox rows that were marked DEAD/FAILED.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			c.JSON(http.StatusUnauthorized, ApiResponse{StatusCode: http.StatusUnauthorized, Message: "unauthorized"})
			return
		}
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request")
			return
		}
		if err := models.ReplayStockPosting(c.Request.Context(), req.MillId, req.RecordId); err != nil {
			respondError(c, err)
			return
		}
		userName, _ := utils.GetUserNameFromContext(c.Request.Context())
		config.GetLogger().WithFields(logrus.Fields{
			"field":     "outboxReplay",
			"mill_id":   req.MillId,
			"record_id": req.RecordId,
			"user":      userName,
		}).Info("outbox row requeued")
		respondOK(c, gin.H{
			"millId":   req.MillId,
			"recordId": req.RecordId,
			"status":   models.StockPostingStatusFailed,
		}, "requeued")
	}
}

// Ops tooling (admin only): report whether a dispatcher has polled recently.
func outboxHealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			c.JSON(http.StatusUnauthorized, ApiResponse{StatusCode: http.StatusUnauthorized, Message: "unauthorized"})
			return
		}
		lastDispatchAt, found, err := config.GetRedisValue(workflow.OutboxHeartbeatKey)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{
			"healthy":        found,
			"lastDispatchAt": lastDispatchAt,
		}, "")
	}
}

func stockSummaryReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		fromDate, toDate, err := parseReportRange(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var commodity *models.Commodity
		if v := c.Query("commodity"); v != "" {
			cm := models.Commodity(v)
			commodity = &cm
		}
		results, err := reports.GetStockSummaryReport(c.Request.Context(), millId, fromDate, toDate, commodity)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, results, "")
	}
}

func stockSummaryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		fromDate, toDate, err := parseReportRange(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var commodity *models.Commodity
		if v := c.Query("commodity"); v != "" {
			cm := models.Commodity(v)
			commodity = &cm
		}
		buf, err := reports.ExportStockSummaryXlsx(c.Request.Context(), millId, fromDate, toDate, commodity)
		if err != nil {
			respondError(c, err)
			return
		}
		fileName := fmt.Sprintf("stock-summary-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

// parseReportRange requires both bounds; report aggregates need a closed window.
func parseReportRange(c *gin.Context) (models.DateString, models.DateString, error) {
	fromDate, err := models.ParseDateString(c.Query("startDate"))
	if err != nil || fromDate == nil {
		return models.DateString{}, models.DateString{}, utils.NewValidationError("startDate is required")
	}
	toDate, err := models.ParseDateString(c.Query("endDate"))
	if err != nil || toDate == nil {
		return models.DateString{}, models.DateString{}, utils.NewValidationError("endDate is required")
	}
	return *fromDate, *toDate, nil
}
