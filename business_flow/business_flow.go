package businessflow

import (
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	"github.com/amirphl/faredown-pricing/utils"
)

// pageBounds normalizes 1-based paging input into limit and offset
func pageBounds(page, limit int) (int, int, int, error) {
	if page < 0 {
		return 0, 0, 0, NewBusinessError("INVALID_PAGE", "Page must be positive", ErrInvalidPage)
	}
	if limit < 0 || limit > utils.MaxPageSize {
		return 0, 0, 0, NewBusinessError("INVALID_PAGE_SIZE", "Page size is out of range", ErrInvalidPageSize)
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = utils.DefaultPageSize
	}
	return page, limit, (page - 1) * limit, nil
}

func paginationInfo(total int64, page, limit int) dto.PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
