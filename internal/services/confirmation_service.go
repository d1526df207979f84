package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"confirmation-service/internal/domain"
	"confirmation-service/internal/infra"
	rabbit "confirmation-service/internal/infra/rabbitmq"
	"confirmation-service/internal/repository"
	"confirmation-service/internal/ticketcode"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrOrderNotFound = errors.New("order not found")

// ErrIssuanceExhausted aborts the confirmation transaction after repeated
// short-code collisions; it signals a numbering problem, not a transient
// condition, and surfaces as a retryable server error to the provider.
var ErrIssuanceExhausted = errors.New("ticket code collision retries exhausted")

// ConfirmOutcome classifies what a payment notification did. Every outcome
// except OutcomeConfirmed is a no-op acknowledged to the provider.
type ConfirmOutcome string

const (
	OutcomeConfirmed        ConfirmOutcome = "confirmed"
	OutcomeUnknownOrder     ConfirmOutcome = "unknown-order"
	OutcomeAlreadyPaid      ConfirmOutcome = "already-paid"
	OutcomeProviderMismatch ConfirmOutcome = "provider-mismatch"
	OutcomeTicketsExist     ConfirmOutcome = "tickets-exist"
)

const (
	maxCodeAttempts = 5
	issuedBySource  = "xendit"
	userCacheTTL    = time.Minute
)

type ConfirmationService struct {
	store       repository.ConfirmationStore
	users       infra.UserClientInterface
	publisher   rabbit.PublisherInterface
	redisClient *redis.Client
	logger      *slog.Logger
	now         func() time.Time
}

func NewConfirmationService(store repository.ConfirmationStore, users infra.UserClientInterface, pub rabbit.PublisherInterface, logger *slog.Logger) *ConfirmationService {
	return &ConfirmationService{
		store:     store,
		users:     users,
		publisher: pub,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ConfirmationService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// ConfirmPayment applies one successful-payment notification. The state
// read, the PENDING->PAID transition and the ticket batch all run in a
// single storage transaction; concurrent or repeated deliveries for the
// same order resolve to no-op outcomes instead of duplicate tickets.
func (s *ConfirmationService) ConfirmPayment(ctx context.Context, orderID, providerRef string) (ConfirmOutcome, error) {
	var (
		outcome ConfirmOutcome
		issued  *domain.TicketsIssuedEvent
	)

	err := s.store.InTransaction(ctx, func(tx repository.ConfirmationTx) error {
		payment, err := tx.PaymentForUpdate(orderID)
		if err != nil {
			return err
		}
		if payment == nil {
			s.logger.Warn("payment notification for unknown order", "order_id", orderID)
			outcome = OutcomeUnknownOrder
			return nil
		}
		if payment.Status == domain.PaymentStatusPaid {
			outcome = OutcomeAlreadyPaid
			return nil
		}
		if stored := payment.ProviderReference(); stored != "" && providerRef != "" && stored != providerRef {
			s.logger.Warn("provider reference mismatch, manual review required",
				"payment_id", payment.ID, "order_id", orderID,
				"stored", stored, "got", providerRef)
			outcome = OutcomeProviderMismatch
			return nil
		}

		ref := providerRef
		if ref == "" {
			ref = payment.ProviderReference()
		}
		if err := tx.MarkPaymentPaid(payment.ID, ref); err != nil {
			return err
		}
		paidAt := s.now()
		if err := tx.MarkOrderPaid(orderID, paidAt); err != nil {
			return err
		}

		// A retried notification may land after a prior attempt already
		// committed tickets; never issue a second batch for the order.
		existing, err := tx.CountTicketsByOrder(orderID)
		if err != nil {
			return err
		}
		if existing > 0 {
			outcome = OutcomeTicketsExist
			return nil
		}

		event, err := s.issueBatch(ctx, tx, payment, paidAt)
		if err != nil {
			return err
		}
		issued = event
		outcome = OutcomeConfirmed
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeConfirmed && issued != nil {
		s.invalidateOrderCaches(orderID)
		go s.publishTicketsIssued(context.Background(), issued)
	}

	return outcome, nil
}

// issueBatch creates one ticket per requested unit, inside the caller's
// transaction. Ticket-type keys are issued in sorted order so batches are
// deterministic; the sequence number continues across types and across
// collision retries.
func (s *ConfirmationService) issueBatch(ctx context.Context, tx repository.ConfirmationTx, payment *domain.Payment, issuedAt time.Time) (*domain.TicketsIssuedEvent, error) {
	order, err := tx.Order(payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s missing for payment %s", payment.OrderID, payment.ID)
	}

	payload, err := payment.ParsePayload()
	if err != nil {
		s.logger.Warn("payment payload unparsable, issuing no tickets",
			"payment_id", payment.ID, "order_id", order.ID, "err", err)
		payload = domain.PaymentPayload{}
	}

	base, buyerName := s.buyerIdentity(ctx, order, payload)
	datePart := ticketcode.DatePart(issuedAt)

	seqStart, err := tx.CountShortCodesWithPrefix(base + "-" + datePart)
	if err != nil {
		return nil, err
	}
	seq := int(seqStart)

	types := make([]string, 0, len(payload.Quantities))
	for key := range payload.Quantities {
		types = append(types, key)
	}
	sort.Strings(types)

	total := 0
	for _, ticketType := range types {
		for i := 0; i < payload.Quantities[ticketType]; i++ {
			seq++
			if err := s.insertTicket(tx, order, ticketType, buyerName, base, datePart, &seq, issuedAt); err != nil {
				return nil, err
			}
			total++
		}
	}

	return &domain.TicketsIssuedEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Count:      total,
		Quantities: payload.Quantities,
		IssuedAt:   issuedAt,
	}, nil
}

// insertTicket attempts one insert, regenerating the short-code sequence on
// a uniqueness collision, bounded at maxCodeAttempts.
func (s *ConfirmationService) insertTicket(tx repository.ConfirmationTx, order *domain.Order, ticketType, buyerName, base, datePart string, seq *int, issuedAt time.Time) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		ticket := &domain.Ticket{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			UserID:     order.UserID,
			Status:     domain.TicketStatusPaid,
			EntryToken: ticketcode.EntryToken(),
			ShortCode:  ticketcode.Build(base, datePart, *seq),
			TicketType: ticketType,
			BuyerName:  buyerName,
			IssuedBy:   issuedBySource,
			IssuedAt:   &issuedAt,
		}
		err := tx.CreateTicket(ticket)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateTicket) {
			return err
		}
		*seq++
	}
	s.logger.Error("ticket insert exhausted collision retries",
		"order_id", order.ID, "ticket_type", ticketType, "seq", *seq)
	return ErrIssuanceExhausted
}

// buyerIdentity resolves the short-code base and printable buyer name. The
// user service is an external collaborator; failures there degrade to the
// payload name or the guest base, never to a failed confirmation.
func (s *ConfirmationService) buyerIdentity(ctx context.Context, order *domain.Order, payload domain.PaymentPayload) (string, string) {
	identity := payload.FullName
	buyerName := payload.FullName

	user, err := s.getUserWithCache(ctx, order.UserID)
	if err != nil {
		s.logger.Warn("user lookup failed, falling back to payload identity",
			"user_id", order.UserID, "err", err)
	} else if user != nil {
		if user.Email != "" {
			identity = user.Email
		} else if user.FullName != "" {
			identity = user.FullName
		}
		if user.FullName != "" {
			buyerName = user.FullName
		} else if user.Email != "" {
			buyerName = user.Email
		}
	}

	return ticketcode.NameBase(identity), buyerName
}

func (s *ConfirmationService) getUserWithCache(ctx context.Context, userID string) (*infra.UserInfo, error) {
	cacheKey := "user:" + userID

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var u infra.UserInfo
			if err := json.Unmarshal([]byte(cached), &u); err == nil {
				return &u, nil
			}
		}
	}

	user, err := s.users.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil && user != nil {
		if data, err := json.Marshal(user); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, userCacheTTL)
		}
	}

	return user, nil
}

func (s *ConfirmationService) invalidateOrderCaches(orderID string) {
	if s.redisClient == nil {
		return
	}
	ctx := context.Background()
	s.redisClient.Del(ctx, "order:"+orderID, "tickets:order:"+orderID)
}

func (s *ConfirmationService) publishTicketsIssued(ctx context.Context, event *domain.TicketsIssuedEvent) {
	if err := s.publisher.Publish(ctx, "ticket.issued", event); err != nil {
		s.logger.Error("failed to publish ticket.issued event", "order_id", event.OrderID, "err", err)
	}
}

func (s *ConfirmationService) GetOrderById(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *ConfirmationService) ListTicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.store.TicketsByOrder(ctx, orderID)
}

func (s *ConfirmationService) GetTicketByEntryToken(ctx context.Context, token string) (*domain.Ticket, error) {
	return s.store.TicketByEntryToken(ctx, token)
}
