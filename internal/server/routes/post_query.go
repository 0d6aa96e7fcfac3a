package routes

import (
	"net/http"

	"github.com/weftlabs/weft/internal/server/middleware"
	"github.com/weftlabs/weft/pkg/logger"
	"github.com/weftlabs/weft/pkg/query"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// QueryHandler answers a natural-language question over the current graph.
func QueryHandler(c echo.Context) error {
	type queryBody struct {
		Question string `json:"question" validate:"required"`
	}

	type queryResponse struct {
		Message string        `json:"message,omitempty"`
		Answer  *query.Answer `json:"answer,omitempty"`
	}

	data := new(queryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	engine := app.Engine()
	if engine == nil {
		return c.JSON(http.StatusServiceUnavailable, queryResponse{
			Message: "Graph has not been built yet",
		})
	}

	answer, err := engine.Ask(c.Request().Context(), data.Question)
	if err != nil {
		logger.Error("[Server] Failed to answer question", "err", err)
		return c.JSON(http.StatusInternalServerError, queryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, queryResponse{Answer: &answer})
}
