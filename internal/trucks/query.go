package trucks

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	dateLayout   = "2006-01-02"
	defaultLimit = 100
	maxLimit     = 5000
)

// Filter is the query-string filter shared by list, export and stats.
type Filter struct {
	Terminal          string
	StatusPreparation string
	StatusLoading     string
	DateFrom          *time.Time
	DateTo            *time.Time
}

type clause struct {
	sql string
	arg any
}

// ParseFilter reads terminal, status_preparation, status_loading, date_from
// and date_to. Dates are inclusive calendar days (UTC).
func ParseFilter(c *fiber.Ctx) (Filter, error) {
	f := Filter{
		Terminal:          c.Query("terminal"),
		StatusPreparation: c.Query("status_preparation"),
		StatusLoading:     c.Query("status_loading"),
	}

	var err error
	if f.DateFrom, err = parseDate(c.Query("date_from")); err != nil {
		return f, fiber.NewError(fiber.StatusBadRequest, "Invalid date_from, expected YYYY-MM-DD")
	}
	if f.DateTo, err = parseDate(c.Query("date_to")); err != nil {
		return f, fiber.NewError(fiber.StatusBadRequest, "Invalid date_to, expected YYYY-MM-DD")
	}
	return f, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// clauses keeps predicates in a fixed order so every caller binds the same
// placeholders the same way. date_to is turned into an exclusive upper bound.
func (f Filter) clauses() []clause {
	var out []clause
	if f.Terminal != "" {
		out = append(out, clause{"terminal = ?", f.Terminal})
	}
	if f.StatusPreparation != "" {
		out = append(out, clause{"status_preparation = ?", f.StatusPreparation})
	}
	if f.StatusLoading != "" {
		out = append(out, clause{"status_loading = ?", f.StatusLoading})
	}
	if f.DateFrom != nil {
		out = append(out, clause{"created_at >= ?", *f.DateFrom})
	}
	if f.DateTo != nil {
		out = append(out, clause{"created_at < ?", f.DateTo.AddDate(0, 0, 1)})
	}
	return out
}

// Apply adds the filter's predicates to the query.
func (f Filter) Apply(q *gorm.DB) *gorm.DB {
	for _, cl := range f.clauses() {
		q = q.Where(cl.sql, cl.arg)
	}
	return q
}

// ParsePage reads skip and limit. limit is capped at maxLimit.
func ParsePage(c *fiber.Ctx) (skip, limit int, err error) {
	skip, limit = 0, defaultLimit

	if raw := c.Query("skip"); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid skip")
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit, nil
}
