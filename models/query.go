package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// QueryParams carries the raw list-endpoint inputs after parsing.
// Filters holds only the whitelisted keys a QuerySpec understands.
type QueryParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
	StartDate *DateString
	EndDate   *DateString
	Filters   map[string]string
}

// QuerySpec is a model's whitelist of searchable/filterable/sortable columns.
// Anything outside the whitelist is silently ignored, never interpolated into SQL.
type QuerySpec struct {
	SearchColumns     []string
	FilterColumns     map[string]string // query param -> db column
	SortColumns       map[string]string // sortBy value -> db column
	DateColumn        string
	DefaultSortColumn string
}

type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasPrevPage bool  `json:"hasPrevPage"`
	HasNextPage bool  `json:"hasNextPage"`
	PrevPage    *int  `json:"prevPage"`
	NextPage    *int  `json:"nextPage"`
}

// ClampPageLimit normalizes page to >= 1 and limit into [1, MaxPageLimit].
func ClampPageLimit(page int, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// BuildPagination computes the page envelope from a total row count.
// Pure function so the page math is testable without a database.
func BuildPagination(page int, limit int, total int64) *Pagination {
	page, limit = ClampPageLimit(page, limit)

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	p := Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasPrevPage: page > 1,
		HasNextPage: page < totalPages,
	}
	if p.HasPrevPage {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := page + 1
		p.NextPage = &next
	}
	return &p
}

// PaginateModels runs the shared list query for any tenant-scoped model:
// literal substring search ORed over SearchColumns, whitelisted filters ANDed,
// inclusive date range on DateColumn, whitelisted sort with id tiebreak.
func PaginateModels[T any](ctx context.Context, millId string, spec QuerySpec, params *QueryParams) ([]*T, *Pagination, error) {
	if millId == "" {
		return nil, nil, errors.New("mill id is required")
	}
	if params == nil {
		params = &QueryParams{}
	}
	page, limit := ClampPageLimit(params.Page, params.Limit)

	timezone := MillTimezone(ctx, millId)
	if err := params.StartDate.StartOfDayUTCTime(timezone); err != nil {
		return nil, nil, err
	}
	if err := params.EndDate.EndOfDayUTCTime(timezone); err != nil {
		return nil, nil, err
	}

	db := config.GetDB()
	baseQuery := func() *gorm.DB {
		var model T
		dbCtx := db.WithContext(ctx).Model(&model).Where("mill_id = ?", millId)

		if params.Search != "" && len(spec.SearchColumns) > 0 {
			pattern := "%" + utils.EscapeLike(params.Search) + "%"
			conds := make([]string, 0, len(spec.SearchColumns))
			args := make([]interface{}, 0, len(spec.SearchColumns))
			for _, col := range spec.SearchColumns {
				conds = append(conds, col+" LIKE ?")
				args = append(args, pattern)
			}
			dbCtx = dbCtx.Where("("+strings.Join(conds, " OR ")+")", args...)
		}

		for param, col := range spec.FilterColumns {
			if v, ok := params.Filters[param]; ok && v != "" {
				dbCtx = dbCtx.Where(col+" LIKE ?", "%"+utils.EscapeLike(v)+"%")
			}
		}

		if spec.DateColumn != "" {
			if params.StartDate != nil {
				dbCtx = dbCtx.Where(spec.DateColumn+" >= ?", time.Time(*params.StartDate))
			}
			if params.EndDate != nil {
				dbCtx = dbCtx.Where(spec.DateColumn+" <= ?", time.Time(*params.EndDate))
			}
		}
		return dbCtx
	}

	var total int64
	if err := baseQuery().Count(&total).Error; err != nil {
		return nil, nil, err
	}

	sortColumn := spec.DefaultSortColumn
	if col, ok := spec.SortColumns[params.SortBy]; ok && params.SortBy != "" {
		sortColumn = col
	}
	direction := "DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		direction = "ASC"
	}

	var results []*T
	dbCtx := baseQuery()
	if sortColumn != "" {
		dbCtx = dbCtx.Order(sortColumn + " " + direction)
	}
	// id tiebreak keeps paging stable when the sort column has duplicates
	dbCtx = dbCtx.Order("id " + direction).
		Limit(limit).
		Offset((page - 1) * limit)
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, nil, err
	}

	return results, BuildPagination(page, limit, total), nil
}

// ApplyDateRange adds the same inclusive day-bounded range used by PaginateModels
// to an arbitrary query. Mutates start/end to UTC day bounds.
func ApplyDateRange(dbCtx *gorm.DB, column string, timezone string, start *DateString, end *DateString) (*gorm.DB, error) {
	if err := start.StartOfDayUTCTime(timezone); err != nil {
		return nil, err
	}
	if err := end.EndOfDayUTCTime(timezone); err != nil {
		return nil, err
	}
	if start != nil {
		dbCtx = dbCtx.Where(column+" >= ?", time.Time(*start))
	}
	if end != nil {
		dbCtx = dbCtx.Where(column+" <= ?", time.Time(*end))
	}
	return dbCtx, nil
}
