package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SyncHandler exposes the sync use case over HTTP.
type SyncHandler struct {
	sync      in.SyncUseCase
	publisher out.SyncJobPublisher
}

// NewSyncHandler creates a sync handler. A nil publisher disables the async endpoint.
func NewSyncHandler(sync in.SyncUseCase, publisher out.SyncJobPublisher) *SyncHandler {
	return &SyncHandler{
		sync:      sync,
		publisher: publisher,
	}
}

func (h *SyncHandler) Register(router fiber.Router) {
	users := router.Group("/users/:userID")

	users.Post("/sync", h.Sync)
	users.Get("/sync/status", h.Status)
	users.Post("/sync/async", h.SyncAsync)
}

// SyncRequest is the optional body of a sync call. AfterDate accepts YYYY-MM-DD or RFC 3339.
type SyncRequest struct {
	MaxResults int    `json:"maxResults"`
	AfterDate  string `json:"afterDate"`
}

func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	userID, opts, err := parseSyncRequest(c)
	if err != nil {
		return err
	}

	summary, err := h.sync.Sync(c.UserContext(), userID, opts)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, summary)
}

func (h *SyncHandler) Status(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return err
	}

	status, err := h.sync.Status(c.UserContext(), userID)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, status)
}

// SyncAsync queues the sync for the worker and returns the job ID.
func (h *SyncHandler) SyncAsync(c *fiber.Ctx) error {
	if h.publisher == nil {
		return apperr.Unavailable("sync queue", nil)
	}

	userID, opts, err := parseSyncRequest(c)
	if err != nil {
		return err
	}

	jobID, err := h.publisher.PublishSync(c.UserContext(), &out.SyncJob{
		UserID:     userID.String(),
		MaxResults: opts.MaxResults,
		AfterDate:  opts.AfterDate,
	})
	if err != nil {
		logger.WithError(err).Error("[SyncHandler.SyncAsync] failed to enqueue sync for %s", userID)
		return apperr.Unavailable("sync queue", err)
	}
	return response.Accepted(c, fiber.Map{"jobId": jobID})
}

func parseUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("userID", "must be a UUID")
	}
	return userID, nil
}

func parseSyncRequest(c *fiber.Ctx) (uuid.UUID, *domain.SyncOptions, error) {
	userID, err := parseUserID(c)
	if err != nil {
		return uuid.Nil, nil, err
	}

	var req SyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return uuid.Nil, nil, apperr.BadRequest("invalid request body")
		}
	}
	if req.MaxResults < 0 {
		return uuid.Nil, nil, apperr.InvalidInput("maxResults", "must not be negative")
	}

	opts := &domain.SyncOptions{MaxResults: req.MaxResults}
	if req.AfterDate != "" {
		after, err := parseDate(req.AfterDate)
		if err != nil {
			return uuid.Nil, nil, apperr.InvalidInput("afterDate", "expected YYYY-MM-DD or RFC 3339")
		}
		opts.AfterDate = &after
	}
	return userID, opts, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// toAppError maps domain failures to API error codes.
func toAppError(err error) error {
	var credErr *domain.CredentialError
	var providerErr *domain.MailProviderError
	var persistErr *domain.PersistenceError

	switch {
	case errors.As(err, &credErr):
		return apperr.CredentialError(credErr.Reason, err)
	case errors.As(err, &providerErr):
		return apperr.MailProviderError(providerErr.Op, providerErr.Retryable, err)
	case errors.As(err, &persistErr):
		return apperr.DatabaseError(persistErr.Op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout("sync")
	default:
		return apperr.InternalWithError(err)
	}
}
