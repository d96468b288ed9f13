package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type createSessionRequest struct {
	PartnerID string `json:"partner_id"`
}

type joinSessionRequest struct {
	Code string `json:"code"`
}

type selectionRequest struct {
	Selection map[string]int64 `json:"selection"`
}

type acceptanceRequest struct {
	Accepted bool `json:"accepted"`
}

type messageRequest struct {
	Body string `json:"body"`
}

func (s *Server) HealthCheck(c *fiber.Ctx) error {
	if err := s.db.Ping(c.Context()); err != nil {
		return SendError(c, fiber.StatusServiceUnavailable, "UNHEALTHY", "database unreachable")
	}
	return SendSuccess(c, fiber.Map{"status": "healthy"}, "")
}

func (s *Server) SessionsCreate(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return SendBadRequest(c, "Invalid request body")
	}

	session, err := s.trades.CreateSession(c.Context(), user.ID, req.PartnerID)
	if err != nil {
		return err
	}
	return SendCreated(c, session, "Trade session created")
}

func (s *Server) SessionsList(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	sessions, err := s.trades.ListOpenSessions(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return SendSuccess(c, sessions, "")
}

func (s *Server) SessionsJoin(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	var req joinSessionRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return SendBadRequest(c, "A session code is required")
	}

	session, err := s.trades.JoinSession(c.Context(), user.ID, req.Code)
	if err != nil {
		return err
	}
	return SendSuccess(c, session, "Joined trade session")
}

func (s *Server) SessionsDetail(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	session, err := s.trades.GetSession(c.Context(), user.ID, c.Params("code"))
	if err != nil {
		return err
	}
	return SendSuccess(c, session, "")
}

func (s *Server) SessionsOffers(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	view, err := s.trades.ViewOffers(c.Context(), user.ID, c.Params("code"))
	if err != nil {
		return err
	}
	return SendSuccess(c, view, "")
}

func (s *Server) SessionsSelection(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return SendBadRequest(c, "Invalid request body")
	}

	session, err := s.trades.UpdateSelection(c.Context(), user.ID, c.Params("code"), req.Selection)
	if err != nil {
		return err
	}
	return SendSuccess(c, session, "Selection updated")
}

func (s *Server) SessionsAcceptance(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	var req acceptanceRequest
	if err := c.BodyParser(&req); err != nil {
		return SendBadRequest(c, "Invalid request body")
	}

	session, err := s.trades.SetAcceptance(c.Context(), user.ID, c.Params("code"), req.Accepted)
	if err != nil {
		return err
	}
	return SendSuccess(c, session, "Acceptance updated")
}

func (s *Server) SessionsComplete(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	record, err := s.trades.Complete(c.Context(), user.ID, c.Params("code"))
	if err != nil {
		return err
	}
	return SendSuccess(c, record, "Trade completed")
}

func (s *Server) SessionsMessage(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	var req messageRequest
	if err := c.BodyParser(&req); err != nil || req.Body == "" {
		return SendBadRequest(c, "A message body is required")
	}

	if err := s.trades.PostMessage(c.Context(), user.ID, c.Params("code"), req.Body); err != nil {
		return err
	}
	return SendSuccess(c, nil, "Message sent")
}

func (s *Server) SessionsDelete(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	if err := s.trades.DeleteSession(c.Context(), user.ID, c.Params("code")); err != nil {
		return err
	}
	return SendNoContent(c)
}

func (s *Server) HistoryList(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	records, err := s.trades.ListHistory(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return SendSuccess(c, records, "")
}

func (s *Server) HistoryDetail(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return SendBadRequest(c, "Invalid history id")
	}

	record, err := s.trades.GetHistoryRecord(c.Context(), user.ID, id)
	if err != nil {
		return err
	}
	return SendSuccess(c, record, "")
}

func (s *Server) NotificationsList(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	notifications, err := s.notifications.GetRecentByUser(c.Context(), user.ID, limit)
	if err != nil {
		return err
	}
	return SendSuccess(c, notifications, "")
}

func (s *Server) NotificationsMarkRead(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	if err := s.notifications.MarkAllRead(c.Context(), user.ID); err != nil {
		return err
	}
	return SendSuccess(c, nil, "Notifications marked read")
}
