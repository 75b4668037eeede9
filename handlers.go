package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/models"
	"github.com/graintrack/mill_backend/utils"
)

// ApiResponse is the envelope every endpoint responds with.
type ApiResponse struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
}

func respondOK(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    message,
	})
}

func respondCreated(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, ApiResponse{
		StatusCode: http.StatusCreated,
		Data:       data,
		Message:    message,
	})
}

// respondError maps the error taxonomy onto HTTP statuses:
// record-not-found -> 404, ApiError -> its status, binding/validator -> 400,
// anything else -> logged 500 with a generic message.
func respondError(c *gin.Context, err error) {
	var apiErr *utils.ApiError
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, ApiResponse{StatusCode: http.StatusNotFound, Message: "record not found"})
	case errors.As(err, &apiErr):
		c.JSON(apiErr.StatusCode, ApiResponse{StatusCode: apiErr.StatusCode, Message: apiErr.Message})
	default:
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, ApiResponse{
				StatusCode: http.StatusBadRequest,
				Data:       utils.ProcessValidationErrors(err),
				Message:    "validation failed",
			})
			return
		}
		logger := config.GetLogger()
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(logger, "handlers.go", "respondError", "correlation_id="+cid, nil, err)
		c.JSON(http.StatusInternalServerError, ApiResponse{StatusCode: http.StatusInternalServerError, Message: "internal server error"})
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ApiResponse{StatusCode: http.StatusBadRequest, Message: message})
}

// PaginatedData pairs a result page with its pagination envelope.
type PaginatedData struct {
	Results    interface{}        `json:"results"`
	Pagination *models.Pagination `json:"pagination"`
}

// millFromRequest pulls the caller's mill id from context. Every tenant-scoped
// handler resolves it once here and passes it down explicitly.
func millFromRequest(c *gin.Context) (string, error) {
	millId, ok := utils.GetMillIdFromContext(c.Request.Context())
	if !ok || millId == "" {
		return "", utils.NewValidationError("mill id is required")
	}
	return millId, nil
}

func idFromRequest(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("invalid id")
	}
	return id, nil
}

// reserved query keys the filter map must not swallow
var reservedQueryKeys = map[string]bool{
	"page":      true,
	"limit":     true,
	"search":    true,
	"sortBy":    true,
	"sortOrder": true,
	"startDate": true,
	"endDate":   true,
}

// parseQueryParams reads the shared list-endpoint query string. Unknown keys
// land in Filters; each model's QuerySpec whitelist decides what applies.
func parseQueryParams(c *gin.Context) (*models.QueryParams, error) {
	params := models.QueryParams{
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Filters:   map[string]string{},
	}

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, utils.NewValidationError("invalid page")
		}
		params.Page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, utils.NewValidationError("invalid limit")
		}
		params.Limit = n
	}

	startDate, err := models.ParseDateString(c.Query("startDate"))
	if err != nil {
		return nil, utils.NewValidationError("invalid startDate")
	}
	params.StartDate = startDate
	endDate, err := models.ParseDateString(c.Query("endDate"))
	if err != nil {
		return nil, utils.NewValidationError("invalid endDate")
	}
	params.EndDate = endDate

	for key, values := range c.Request.URL.Query() {
		if reservedQueryKeys[key] || len(values) == 0 {
			continue
		}
		params.Filters[key] = values[0]
	}

	return &params, nil
}

func parseDateRange(c *gin.Context) (*models.DateString, *models.DateString, error) {
	startDate, err := models.ParseDateString(c.Query("startDate"))
	if err != nil {
		return nil, nil, utils.NewValidationError("invalid startDate")
	}
	endDate, err := models.ParseDateString(c.Query("endDate"))
	if err != nil {
		return nil, nil, utils.NewValidationError("invalid endDate")
	}
	return startDate, endDate, nil
}

/* generic document handlers */

// createHandler binds the request body and delegates to the model-layer create.
func createHandler[TIn any, TOut any](create func(ctx context.Context, millId string, input *TIn) (*TOut, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var input TIn
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		result, err := create(c.Request.Context(), millId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, result, "created")
	}
}

func getHandler[TOut any](get func(ctx context.Context, millId string, id int) (*TOut, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		id, err := idFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		result, err := get(c.Request.Context(), millId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result, "")
	}
}

func updateHandler[TIn any, TOut any](update func(ctx context.Context, millId string, id int, input *TIn) (*TOut, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		id, err := idFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var input TIn
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		result, err := update(c.Request.Context(), millId, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result, "updated")
	}
}

func deleteHandler[TOut any](del func(ctx context.Context, millId string, id int) (*TOut, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		id, err := idFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		result, err := del(c.Request.Context(), millId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result, "deleted")
	}
}

func paginateHandler[TOut any](paginate func(ctx context.Context, millId string, params *models.QueryParams) ([]*TOut, *models.Pagination, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		params, err := parseQueryParams(c)
		if err != nil {
			respondError(c, err)
			return
		}
		results, pagination, err := paginate(c.Request.Context(), millId, params)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, PaginatedData{Results: results, Pagination: pagination}, "")
	}
}

func listHandler[TOut any](list func(ctx context.Context, millId string) ([]*TOut, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		results, err := list(c.Request.Context(), millId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, results, "")
	}
}

type bulkDeleteRequest struct {
	Ids []int `json:"ids" binding:"required"`
}

func bulkDeleteHandler(bulkDelete func(ctx context.Context, millId string, ids []int) (int64, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		millId, err := millFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var req bulkDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, err)
			return
		}
		deletedCount, err := bulkDelete(c.Request.Context(), millId, req.Ids)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{"deletedCount": deletedCount}, "deleted")
	}
}

func summaryHandler[TOut any](summary func(ctx context.Context, millId string, startDate *models.DateString, endDate *models.DateString) (*TOut, error)) gin.HandlerFunc {
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
		result, err := summary(c.Request.Context(), millId, startDate, endDate)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result, "")
	}
}
