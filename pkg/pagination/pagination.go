package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1

	// MaxPage keeps (page-1)*MaxLimit inside a 32-bit offset
	MaxPage = math.MaxInt32 / MaxLimit
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts and validates page/limit from query parameters
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return normalize(page, limit)
}

// ParseOptional is Parse for endpoints that return everything unless the
// caller asks for a page: ok is false when no limit query parameter is present.
func ParseOptional(c *gin.Context) (Params, bool) {
	if _, present := c.GetQuery("limit"); !present {
		return Params{}, false
	}
	return Parse(c), true
}

func normalize(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: Offset(page, limit),
	}
}

// Offset returns the row offset of page. Pages past the representable range
// are clamped so the offset never overflows into a negative value.
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	maxPage := math.MaxInt32 / limit
	if page > maxPage {
		page = max(maxPage, 1)
	}
	return (page - 1) * limit
}
