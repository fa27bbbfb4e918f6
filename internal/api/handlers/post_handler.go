package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/repository"
	"go.uber.org/zap"
)

// JobEnqueuer is implemented by queue.Client.
type JobEnqueuer interface {
	EnqueuePublish(ctx context.Context, postID int64, delay time.Duration) error
	EnqueueMetrics(ctx context.Context, postID int64, delay time.Duration) error
	EnqueueAnalytics(ctx context.Context, accountID int64) error
	EnqueueTokenRefreshSweep(ctx context.Context) error
}

type PostHandler struct {
	enq      JobEnqueuer
	posts    repository.PostRepository
	attempts repository.PublishAttemptRepository
	logger   *zap.SugaredLogger
}

func NewPostHandler(enq JobEnqueuer, posts repository.PostRepository, attempts repository.PublishAttemptRepository, logger *zap.SugaredLogger) *PostHandler {
	return &PostHandler{enq: enq, posts: posts, attempts: attempts, logger: logger}
}

func (h *PostHandler) Publish(c *fiber.Ctx) error {
	return h.enqueueForPost(c, "publish", h.enq.EnqueuePublish)
}

func (h *PostHandler) CollectMetrics(c *fiber.Ctx) error {
	return h.enqueueForPost(c, "metrics", h.enq.EnqueueMetrics)
}

func (h *PostHandler) enqueueForPost(c *fiber.Ctx, kind string, enqueue func(context.Context, int64, time.Duration) error) error {
	postID, err := ParamID(c)
	if err != nil {
		return badRequest(c, err)
	}
	delay, err := parseDelay(c)
	if err != nil {
		return badRequest(c, err)
	}

	post, err := h.posts.GetByID(c.Context(), postID)
	if err != nil {
		h.logger.Errorw("failed to load post", "post_id", postID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load post",
		})
	}
	if post == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}

	if err := enqueue(c.Context(), postID, delay); err != nil {
		h.logger.Errorw("failed to enqueue", "kind", kind, "post_id", postID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Error scheduling job",
		})
	}

	h.logger.Infow("job requested", "kind", kind, "post_id", postID, "delay", delay, "service", GetService(c))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":       "Job scheduled successfully",
		"post_id":       postID,
		"delay_seconds": int64(delay / time.Second),
	})
}

// ListAttempts returns the publish attempts recorded for a post.
func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	postID, err := ParamID(c)
	if err != nil {
		return badRequest(c, err)
	}

	attempts, err := h.attempts.ListByPostID(c.Context(), postID)
	if err != nil {
		h.logger.Errorw("failed to list attempts", "post_id", postID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list attempts",
		})
	}
	if attempts == nil {
		return c.JSON([]any{})
	}
	return c.JSON(attempts)
}

func (h *PostHandler) AccountAnalytics(c *fiber.Ctx) error {
	accountID, err := ParamID(c)
	if err != nil {
		return badRequest(c, err)
	}
	if err := h.enq.EnqueueAnalytics(c.Context(), accountID); err != nil {
		h.logger.Errorw("failed to enqueue analytics", "account_id", accountID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Error scheduling job",
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Job scheduled successfully"})
}

func (h *PostHandler) RefreshTokens(c *fiber.Ctx) error {
	if err := h.enq.EnqueueTokenRefreshSweep(c.Context()); err != nil {
		h.logger.Errorw("failed to enqueue refresh sweep", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Error scheduling job",
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Job scheduled successfully"})
}
