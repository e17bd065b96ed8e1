package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/cityguide/internal/db"
	"github.com/david/cityguide/internal/models"
)

// handlePharmacies always answers 200; an empty list means the roster is
// unavailable and the client shows its no-data state.
func (s *Server) handlePharmacies(c echo.Context) error {
	snap := s.Roster.Snapshot(c.Request().Context())
	return c.JSON(http.StatusOK, snap)
}

type listEventsQuery struct {
	Query    string `query:"q" validate:"max=200"`
	Venue    string `query:"venue" validate:"max=200"`
	Featured bool   `query:"featured"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int    `query:"offset" validate:"min=0"`
}

func (s *Server) handleListEvents(c echo.Context) error {
	var q listEventsQuery
	if err := c.Bind(&q); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid query parameters")
	}
	if err := c.Validate(&q); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	params := db.ListParams{
		Query:        q.Query,
		Venue:        q.Venue,
		FeaturedOnly: q.Featured,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}

	ctx := c.Request().Context()
	result, err := s.Events.ListEvents(ctx, params)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}

	result.Events = s.sweep(c, result.Events)
	if q.Featured {
		kept := stillFeatured(result.Events)
		result.Total -= len(result.Events) - len(kept)
		result.Events = kept
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleFeaturedEvents(c echo.Context) error {
	events, err := s.Events.ListFeaturedEvents(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list featured events")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}

	return c.JSON(http.StatusOK, stillFeatured(s.sweep(c, events)))
}

func stillFeatured(events []models.Event) []models.Event {
	out := []models.Event{}
	for _, e := range events {
		if e.IsFeatured {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) handleGetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid event id")
	}

	e, err := s.Events.GetEvent(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id.String()).Msg("failed to get event")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}

	if swept := s.sweep(c, []models.Event{*e}); len(swept) == 1 {
		*e = swept[0]
	}
	return c.JSON(http.StatusOK, e)
}

// sweep un-features lapsed events before they are served.
func (s *Server) sweep(c echo.Context, events []models.Event) []models.Event {
	if s.Sweeper == nil || len(events) == 0 {
		return events
	}
	out, stats := s.Sweeper.Sweep(c.Request().Context(), events)
	if stats.Expired > 0 {
		s.log.Info().
			Int("expired", stats.Expired).
			Int("updated", stats.Updated).
			Int("failed", stats.Failed).
			Msg("lapsed events un-featured on read")
	}
	return out
}

func (s *Server) handleSweep(c echo.Context) error {
	if s.Sweeper == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "sweeper not configured")
	}
	_, stats, err := s.Sweeper.Run(c.Request().Context(), s.Events)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRosterRefresh(c echo.Context) error {
	s.Roster.Refresh()
	snap := s.Roster.Snapshot(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"validity_text": snap.ValidityText,
		"pharmacies":    len(snap.Pharmacies),
		"empty":         snap.Empty(),
	})
}
