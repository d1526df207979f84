package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"confirmation-service/internal/services"
	"confirmation-service/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const readCacheTTL = 10 * time.Second

type Handler struct {
	service *services.ConfirmationService
	auth    *webhook.Authenticator
	rdb     *redis.Client
	logger  *slog.Logger
}

func NewHandler(s *services.ConfirmationService, auth *webhook.Authenticator, rdb *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{service: s, auth: auth, rdb: rdb, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhooks/xendit", h.HandlePaymentCallback)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders/:id/tickets", h.GetOrderTickets)
	r.GET("/tickets/:token", h.GetTicketInfo)
	r.GET("/healthz", h.Health)
}

// HandlePaymentCallback is the provider-facing entry point. Everything the
// engine decided itself acknowledges 200 so the provider stops retrying;
// 401 is reserved for verification failures and 500 for transaction errors
// the provider should retry.
func (h *Handler) HandlePaymentCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook handler error"})
		return
	}

	if !h.auth.Verify(raw, c.GetHeader(webhook.TokenHeader), c.GetHeader(webhook.SignatureHeader)) {
		h.logger.Error("payment callback signature verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	notification, err := webhook.Parse(raw)
	if err != nil {
		// Not an invoice event we track; the provider cannot fix this by
		// retrying, so acknowledge and move on.
		c.JSON(http.StatusOK, WebhookAck{OK: true})
		return
	}

	outcome, err := h.service.ConfirmPayment(c.Request.Context(), notification.OrderID, notification.InvoiceID)
	if err != nil {
		h.logger.Error("payment confirmation failed", "order_id", notification.OrderID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook handler error"})
		return
	}

	h.logger.Info("payment callback processed", "order_id", notification.OrderID, "outcome", string(outcome))
	c.JSON(http.StatusOK, WebhookAck{OK: true})
}

func (h *Handler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")
	cacheKey := "order:" + orderID

	ctx := c.Request.Context()
	if h.rdb != nil {
		if b, err := h.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var cached OrderResponse
			if err := json.Unmarshal([]byte(b), &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}
	}

	order, err := h.service.GetOrderById(ctx, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := OrderResponse{
		ID:        order.ID,
		Status:    string(order.Status),
		Amount:    order.Amount,
		CreatedAt: order.CreatedAt,
		PaidAt:    order.PaidAt,
	}

	if h.rdb != nil {
		if data, err := json.Marshal(resp); err == nil {
			h.rdb.Set(context.Background(), cacheKey, data, readCacheTTL)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetOrderTickets(c *gin.Context) {
	orderID := c.Param("id")
	cacheKey := "tickets:order:" + orderID

	ctx := c.Request.Context()
	if h.rdb != nil {
		if b, err := h.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var cached []TicketResponse
			if err := json.Unmarshal([]byte(b), &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}
	}

	tickets, err := h.service.ListTicketsByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketResponse{
			ID:         t.ID,
			OrderID:    t.OrderID,
			Status:     string(t.Status),
			EntryToken: t.EntryToken,
			ShortCode:  t.ShortCode,
			TicketType: t.TicketType,
			BuyerName:  t.BuyerName,
			IssuedAt:   t.IssuedAt,
		})
	}

	if h.rdb != nil {
		if data, err := json.Marshal(out); err == nil {
			h.rdb.Set(context.Background(), cacheKey, data, readCacheTTL)
		}
	}

	c.JSON(http.StatusOK, out)
}

// GetTicketInfo resolves a ticket by its entry token for the gate
// collaborator; the check-in mutation itself happens elsewhere.
func (h *Handler) GetTicketInfo(c *gin.Context) {
	token := c.Param("token")

	ticket, err := h.service.GetTicketByEntryToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ticket == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}

	c.JSON(http.StatusOK, TicketResponse{
		ID:         ticket.ID,
		OrderID:    ticket.OrderID,
		Status:     string(ticket.Status),
		EntryToken: ticket.EntryToken,
		ShortCode:  ticket.ShortCode,
		TicketType: ticket.TicketType,
		BuyerName:  ticket.BuyerName,
		IssuedAt:   ticket.IssuedAt,
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
