package routes

import (
	"net/http"

	"github.com/weftlabs/weft/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// StatsHandler returns the report of the most recent build: goal, file
// selection decisions, graph counts, resolution statistics and timings.
func StatsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	report := app.Report()
	if report == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"message": "No build has run yet",
		})
	}
	return c.JSON(http.StatusOK, report)
}
