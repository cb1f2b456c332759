package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/quizhub/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// paramInt reads an integer path param; anything else can only be a missing resource.
func paramInt(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// queryInt reads an optional integer query param, ignoring malformed values.
func queryInt(ctx echo.Context, name string) *int {
	id, err := strconv.Atoi(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &id
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type JobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
