package query

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db"
)

// Response is the body of GET /events.
type Response struct {
	Total  int        `json:"total"`
	Events []v1.Event `json:"events"`
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}

// Handler serves the stored window: GET /events?days_behind=&days_ahead=&source=&category=
// source and category may repeat.
func Handler(store *db.Store, window v1.TimeWindow) echo.HandlerFunc {
	return func(c echo.Context) error {
		behind, err := intParam(c, "days_behind", window.Behind())
		if err != nil {
			return err
		}
		ahead, err := intParam(c, "days_ahead", window.Ahead())
		if err != nil {
			return err
		}

		events, err := store.QueryWindow(c.Request().Context(), db.WindowQuery{
			DaysBehind: behind,
			DaysAhead:  ahead,
			SourceIDs:  c.QueryParams()["source"],
			Categories: c.QueryParams()["category"],
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if events == nil {
			events = []v1.Event{}
		}
		return c.JSONPretty(http.StatusOK, Response{Total: len(events), Events: events}, "  ")
	}
}

// EventHandler serves GET /events/:id.
func EventHandler(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		event, err := store.GetEvent(c.Request().Context(), c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if event == nil {
			return echo.NewHTTPError(http.StatusNotFound, "event with id="+c.Param("id")+" was not found")
		}
		return c.JSONPretty(http.StatusOK, event, "  ")
	}
}

// StatsHandler serves GET /stats.
func StatsHandler(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := store.Statistics(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSONPretty(http.StatusOK, stats, "  ")
	}
}
