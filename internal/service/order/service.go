// Package order содержит прикладной сервис заказов: CRUD, смену статуса,
// историю статусов и публикацию событий через transactional outbox.
package order

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/mapping"
	"github.com/vladislavdragonenkov/loja/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
	"github.com/vladislavdragonenkov/loja/internal/service/crud"
)

const (
	opUpdateStatus    = "update_status"
	opGetWithProducts = "get_with_products"
	opTimeline        = "timeline"
)

// Dependencies — необязательные зависимости сервиса заказов.
type Dependencies struct {
	// Products используется GetWithProducts для загрузки товаров позиций.
	Products domain.ProductRepository
	// Outbox получает события order.created / order.status_changed / order.removed.
	Outbox domain.OutboxRepository
	// Timeline хранит историю статусов.
	Timeline domain.TimelineRepository
	// Policy решает, допустим ли переход статуса; nil означает OpenStatusPolicy.
	Policy domain.StatusPolicy
}

// Service — сервис заказов.
type Service struct {
	*crud.Service[domain.Order, dto.Order, domain.OrderFilter]

	products domain.ProductRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	policy   domain.StatusPolicy
	metrics  *metrics.ServiceMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, deps Dependencies, options ...crud.Option) *Service {
	opts := crud.ApplyOptions(options...)

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	policy := deps.Policy
	if policy == nil {
		policy = domain.OpenStatusPolicy{}
	}

	return &Service{
		Service: crud.New(crud.Config[domain.Order, dto.Order, domain.OrderFilter]{
			Entity:   "order",
			Repo:     orders,
			Mapper:   mapping.OrderMapper{},
			Aliases:  domain.OrderSortAliases,
			ID:       func(o domain.Order) int64 { return o.ID },
			SetID:    func(o *domain.Order, id int64) { o.ID = id },
			Validate: (*domain.Order).ValidateInvariants,
			PrepareCreate: func(o *domain.Order) {
				// Новый заказ всегда начинается с created, дальше статус меняет только UpdateStatus.
				o.Status = domain.OrderStatusCreated
				// Сумма, не переданная явно, считается по позициям.
				if o.TotalMinor == 0 && len(o.Items) > 0 {
					o.TotalMinor = o.ItemsTotal()
				}
				o.CreatedAt = opts.Now()
			},
			PrepareUpdate: func(current domain.Order, next *domain.Order) {
				// Статус меняется только через UpdateStatus.
				next.Status = current.Status
				next.CreatedAt = current.CreatedAt
				if next.TotalMinor == 0 && len(next.Items) > 0 {
					next.TotalMinor = next.ItemsTotal()
				}
			},
			MaxPageSize: opts.MaxPageSize,
			Logger:      logger,
			Metrics:     opts.Metrics,
		}),
		products: deps.Products,
		outbox:   deps.Outbox,
		timeline: deps.Timeline,
		policy:   policy,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      opts.Now,
	}
}

// Add создаёт заказ, записывает первое событие истории и ставит order.created в outbox.
func (s *Service) Add(ctx context.Context, in dto.Order) (dto.Order, error) {
	created, err := s.Service.Add(ctx, in)
	if err != nil {
		return created, err
	}

	order := mapping.OrderMapper{}.ToEntity(created)
	s.appendTimeline(ctx, order.ID, domain.EventOrderCreated, string(order.Status))
	s.emit(ctx, kafka.EventTypeOrderCreated, order, "")
	return created, nil
}

// Remove удаляет заказ вместе с позициями и ставит order.removed в outbox.
func (s *Service) Remove(ctx context.Context, id int64) error {
	order, loadErr := s.Load(ctx, id)
	if err := s.Service.Remove(ctx, id); err != nil {
		return err
	}
	if loadErr != nil {
		order = domain.Order{ID: id}
	}

	s.emit(ctx, kafka.EventTypeOrderRemoved, order, "")
	return nil
}

// GetPagedFiltered возвращает страницу заказов, отобранных по клиенту и/или продавцу и/или статусу.
func (s *Service) GetPagedFiltered(ctx context.Context, params domain.PagingParameters, filter domain.OrderFilter) (dto.Page[dto.Order], error) {
	if filter.ClientID < 0 || filter.SellerID < 0 {
		return dto.Page[dto.Order]{}, domain.NewValidation("filter", "client and seller ids must be non-negative")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return dto.Page[dto.Order]{}, domain.NewValidation("status", "unknown order status "+string(filter.Status))
	}
	return s.Service.GetPagedFiltered(ctx, params, filter)
}

// UpdateStatus меняет статус заказа. Неизвестный статус и запрещённый политикой переход
// дают ValidationFailure, отсутствующий заказ — NotFound.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (result dto.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation(s.Entity(), opUpdateStatus, crud.Result(err), time.Since(started))
	}()

	next := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return result, domain.NewValidation("status", "unknown order status "+status)
	}

	order, err := s.Load(ctx, id)
	if err != nil {
		return result, err
	}

	previous := order.Status
	if err = order.UpdateStatus(next, s.policy); err != nil {
		return result, err
	}
	if err = s.Save(ctx, order); err != nil {
		return result, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       order.Status,
	}).Info("order status updated")

	s.metrics.RecordStatusTransition(string(previous), string(order.Status))
	s.appendTimeline(ctx, order.ID, domain.EventOrderStatusChanged, string(previous)+" -> "+string(order.Status))
	s.emit(ctx, kafka.EventTypeOrderStatusChanged, order, previous)

	return s.ToDTO(order), nil
}

// GetWithProducts возвращает заказ, у позиций которого загружены товары.
// Удалённый товар не ломает ответ: позиция возвращается без товара.
func (s *Service) GetWithProducts(ctx context.Context, id int64) (result dto.OrderWithProducts, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation(s.Entity(), opGetWithProducts, crud.Result(err), time.Since(started))
	}()

	order, err := s.Load(ctx, id)
	if err != nil {
		return result, err
	}

	result.Order = s.ToDTO(order)
	result.Products = make([]dto.OrderProduct, 0, len(result.Order.Items))

	cache := make(map[int64]*dto.Product, len(order.Items))
	for _, item := range result.Order.Items {
		line := dto.OrderProduct{OrderItem: item}

		product, seen := cache[item.ProductID]
		if !seen && s.products != nil {
			loaded, loadErr := s.products.GetByID(ctx, item.ProductID)
			switch {
			case loadErr == nil:
				p := mapping.ProductMapper{}.ToDTO(loaded)
				product = &p
			case domain.IsNotFound(loadErr):
				s.logger.WithFields(log.Fields{
					"order_id":   order.ID,
					"product_id": item.ProductID,
				}).Warn("order item references missing product")
			default:
				return result, loadErr
			}
			cache[item.ProductID] = product
		}

		line.Product = product
		result.Products = append(result.Products, line)
	}

	return result, nil
}

// Timeline возвращает историю статусов заказа в хронологическом порядке.
func (s *Service) Timeline(ctx context.Context, id int64) (events []dto.TimelineEvent, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation(s.Entity(), opTimeline, crud.Result(err), time.Since(started))
	}()

	if _, err = s.Load(ctx, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []dto.TimelineEvent{}, nil
	}

	stored, err := s.timeline.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapping.Timeline(stored), nil
}

// appendTimeline записывает событие истории. Ошибка только логируется.
func (s *Service) appendTimeline(ctx context.Context, orderID int64, eventType, reason string) {
	if s.timeline == nil {
		return
	}

	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: s.now(),
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	s.metrics.RecordTimelineEvent()
}

// emit ставит событие заказа в outbox. Ошибка только логируется: запись заказа уже сохранена.
func (s *Service) emit(ctx context.Context, eventType kafka.EventType, order domain.Order, previous domain.OrderStatus) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(kafka.NewOrderEvent(eventType, order, previous))
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	s.metrics.RecordOutboxEnqueued()
}
