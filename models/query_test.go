package models_test

import (
	"testing"

	"github.com/graintrack/mill_backend/models"
)

func TestClampPageLimit(t *testing.T) {
	cases := []struct {
		page, limit         int
		expPage, expLimit   int
	}{
		{0, 0, 1, models.DefaultPageLimit},
		{-3, -1, 1, models.DefaultPageLimit},
		{1, 25, 1, 25},
		{2, 100, 2, 100},
		{2, 500, 2, models.MaxPageLimit},
		{7, 1, 7, 1},
	}
	for _, tc := range cases {
		page, limit := models.ClampPageLimit(tc.page, tc.limit)
		if page != tc.expPage || limit != tc.expLimit {
			t.Fatalf("ClampPageLimit(%d, %d) expected (%d, %d), got (%d, %d)",
				tc.page, tc.limit, tc.expPage, tc.expLimit, page, limit)
		}
	}
}

func TestBuildPagination_PageMath(t *testing.T) {
	// 95 rows at limit 10 => 10 pages
	p := models.BuildPagination(1, 10, 95)
	if p.TotalPages != 10 {
		t.Fatalf("expected 10 total pages, got %d", p.TotalPages)
	}
	if p.HasPrevPage || p.PrevPage != nil {
		t.Fatalf("page 1 must not have a prev page")
	}
	if !p.HasNextPage || p.NextPage == nil || *p.NextPage != 2 {
		t.Fatalf("page 1 of 10 must have next page 2")
	}

	// last page
	p = models.BuildPagination(10, 10, 95)
	if p.HasNextPage || p.NextPage != nil {
		t.Fatalf("last page must not have a next page")
	}
	if !p.HasPrevPage || p.PrevPage == nil || *p.PrevPage != 9 {
		t.Fatalf("page 10 must have prev page 9")
	}

	// exact multiple: 100 rows / 10 => 10 pages, not 11
	p = models.BuildPagination(1, 10, 100)
	if p.TotalPages != 10 {
		t.Fatalf("expected 10 total pages for 100/10, got %d", p.TotalPages)
	}
}

func TestBuildPagination_EmptyResultSet(t *testing.T) {
	p := models.BuildPagination(1, 10, 0)
	if p.Total != 0 || p.TotalPages != 0 {
		t.Fatalf("expected empty envelope, got total=%d totalPages=%d", p.Total, p.TotalPages)
	}
	if p.HasPrevPage || p.HasNextPage || p.PrevPage != nil || p.NextPage != nil {
		t.Fatalf("empty set must have no prev/next pages: %+v", p)
	}
}

func TestBuildPagination_ClampsInputs(t *testing.T) {
	p := models.BuildPagination(0, 1000, 250)
	if p.Page != 1 {
		t.Fatalf("expected page clamped to 1, got %d", p.Page)
	}
	if p.Limit != models.MaxPageLimit {
		t.Fatalf("expected limit clamped to %d, got %d", models.MaxPageLimit, p.Limit)
	}
	if p.TotalPages != 3 {
		t.Fatalf("expected 3 total pages for 250/100, got %d", p.TotalPages)
	}
}
