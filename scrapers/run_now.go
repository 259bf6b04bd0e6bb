package scrapers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
)

// RunNowHandler runs a single configured source on demand: POST /run/:id.
func RunNowHandler(collector *Collector, configs []v1.SourceConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		config, ok := lo.Find(configs, func(s v1.SourceConfig) bool { return s.ID == id })
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("source with id=%s was not found", id))
		}

		report := collector.Collect(c.Request().Context(), []v1.SourceConfig{config})
		outcome, ok := report.Outcomes[id]
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("source %s could not be initialized", id))
		}
		status := http.StatusOK
		if outcome.Status == models.StatusError {
			status = http.StatusBadGateway
		}
		return c.JSON(status, outcome)
	}
}
