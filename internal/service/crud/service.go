// Package crud реализует общий прикладной сервис для сущностей магазина:
// GetByID, GetPaged, Add, Update, Remove поверх domain.Repository.
package crud

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/mapping"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
)

// Имена операций для логов и метрик.
const (
	OpGetByID  = "get_by_id"
	OpGetPaged = "get_paged"
	OpAdd      = "add"
	OpUpdate   = "update"
	OpRemove   = "remove"
)

// Config описывает, как сервис работает с конкретной сущностью.
type Config[E any, D any, F any] struct {
	// Entity — имя сущности для логов, метрик и ошибок.
	Entity string
	Repo   domain.Repository[E, F]
	Mapper mapping.Mapper[E, D]
	// Aliases переводит клиентский ключ сортировки в SortField.
	Aliases domain.SortAliases
	// Filter строит фильтр из PagingParameters.Filter для GetPaged.
	Filter func(domain.PagingParameters) F
	// ID и SetID дают доступ к идентификатору сущности.
	ID    func(E) int64
	SetID func(*E, int64)
	// Validate возвращает нарушения правил сущности.
	Validate func(*E) []error
	// PrepareCreate заполняет поля, которые выставляет сервис (даты, статус по умолчанию).
	PrepareCreate func(*E)
	// PrepareUpdate переносит в новую версию поля, которые клиент не меняет.
	PrepareUpdate func(current E, next *E)
	// MaxPageSize — верхняя граница pageSize; <= 0 означает domain.DefaultMaxPageSize.
	MaxPageSize int
	Logger      *log.Entry
	Metrics     *metrics.ServiceMetrics
}

// Service — общий CRUD-сервис. Все ошибки ввода возвращаются как ValidationFailure
// до обращения к хранилищу.
type Service[E any, D any, F any] struct {
	cfg    Config[E, D, F]
	logger *log.Entry
}

// New создаёт сервис по конфигурации.
func New[E any, D any, F any](cfg Config[E, D, F]) *Service[E, D, F] {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "service")
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = domain.DefaultMaxPageSize
	}
	return &Service[E, D, F]{
		cfg:    cfg,
		logger: logger.WithField("entity", cfg.Entity),
	}
}

// Entity возвращает имя сущности.
func (s *Service[E, D, F]) Entity() string {
	return s.cfg.Entity
}

// MaxPageSize возвращает действующую верхнюю границу pageSize.
func (s *Service[E, D, F]) MaxPageSize() int {
	return s.cfg.MaxPageSize
}

// GetByID возвращает сущность по идентификатору.
func (s *Service[E, D, F]) GetByID(ctx context.Context, id int64) (result D, err error) {
	defer s.observe(OpGetByID, time.Now(), &err)

	entity, err := s.Load(ctx, id)
	if err != nil {
		return result, err
	}
	return s.cfg.Mapper.ToDTO(entity), nil
}

// Load возвращает сущность домена по идентификатору (без метрик).
func (s *Service[E, D, F]) Load(ctx context.Context, id int64) (E, error) {
	if err := ValidateID(id); err != nil {
		var zero E
		return zero, err
	}
	return s.cfg.Repo.GetByID(ctx, id)
}

// GetPaged возвращает страницу сущностей с фильтром, построенным из params.Filter.
func (s *Service[E, D, F]) GetPaged(ctx context.Context, params domain.PagingParameters) (dto.Page[D], error) {
	var filter F
	if s.cfg.Filter != nil {
		filter = s.cfg.Filter(params)
	}
	return s.GetPagedFiltered(ctx, params, filter)
}

// GetPagedFiltered возвращает страницу сущностей, удовлетворяющих filter.
// Порядок — по возрастанию поля, выбранного params.OrderedBy (неизвестный ключ — по id).
func (s *Service[E, D, F]) GetPagedFiltered(ctx context.Context, params domain.PagingParameters, filter F) (page dto.Page[D], err error) {
	defer s.observe(OpGetPaged, time.Now(), &err)

	if err = params.Validate(s.cfg.MaxPageSize); err != nil {
		return page, err
	}

	sort := s.cfg.Aliases.Resolve(params.OrderedBy)
	entities, info, err := s.cfg.Repo.GetPaged(ctx, params, sort, filter)
	if err != nil {
		return page, err
	}

	return dto.Page[D]{
		Items:  mapping.ToDTOs(s.cfg.Mapper, entities),
		Paging: mapping.Paging(info),
	}, nil
}

// Add валидирует и сохраняет новую сущность. Идентификатор выдаёт хранилище.
func (s *Service[E, D, F]) Add(ctx context.Context, in D) (result D, err error) {
	defer s.observe(OpAdd, time.Now(), &err)

	entity := s.cfg.Mapper.ToEntity(in)
	if s.cfg.SetID != nil {
		s.cfg.SetID(&entity, 0)
	}
	if s.cfg.PrepareCreate != nil {
		s.cfg.PrepareCreate(&entity)
	}
	if err = s.validate(&entity); err != nil {
		return result, err
	}

	created, err := s.cfg.Repo.Create(ctx, entity)
	if err != nil {
		return result, err
	}

	s.logger.WithField("id", s.cfg.ID(created)).Debug("entity created")
	return s.cfg.Mapper.ToDTO(created), nil
}

// Update перезаписывает существующую сущность. Отсутствующая сущность даёт NotFound.
func (s *Service[E, D, F]) Update(ctx context.Context, in D) (result D, err error) {
	defer s.observe(OpUpdate, time.Now(), &err)

	next := s.cfg.Mapper.ToEntity(in)
	id := s.cfg.ID(next)
	current, err := s.Load(ctx, id)
	if err != nil {
		return result, err
	}

	if s.cfg.PrepareUpdate != nil {
		s.cfg.PrepareUpdate(current, &next)
	}
	if err = s.validate(&next); err != nil {
		return result, err
	}
	if err = s.cfg.Repo.Update(ctx, next); err != nil {
		return result, err
	}

	s.logger.WithField("id", id).Debug("entity updated")
	return s.cfg.Mapper.ToDTO(next), nil
}

// Remove удаляет сущность по идентификатору.
func (s *Service[E, D, F]) Remove(ctx context.Context, id int64) (err error) {
	defer s.observe(OpRemove, time.Now(), &err)

	if err = ValidateID(id); err != nil {
		return err
	}
	if err = s.cfg.Repo.Remove(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("id", id).Debug("entity removed")
	return nil
}

// Save сохраняет уже провалидированную сущность домена (используется сервисами-наследниками).
func (s *Service[E, D, F]) Save(ctx context.Context, entity E) error {
	return s.cfg.Repo.Update(ctx, entity)
}

// ToDTO переводит сущность в DTO.
func (s *Service[E, D, F]) ToDTO(entity E) D {
	return s.cfg.Mapper.ToDTO(entity)
}

func (s *Service[E, D, F]) validate(entity *E) error {
	if s.cfg.Validate == nil {
		return nil
	}
	return domain.JoinValidation(s.cfg.Validate(entity))
}

func (s *Service[E, D, F]) observe(operation string, started time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	result := Result(err)
	s.cfg.Metrics.ObserveOperation(s.cfg.Entity, operation, result, time.Since(started))

	switch result {
	case metrics.ResultError:
		s.logger.WithError(err).WithField("operation", operation).Error("storage operation failed")
	case metrics.ResultNotFound:
		s.logger.WithError(err).WithField("operation", operation).Warn("entity not found")
	}
}

// ValidateID отклоняет неположительные идентификаторы.
func ValidateID(id int64) error {
	if id <= 0 {
		return domain.NewValidation("id", "must be greater than zero")
	}
	return nil
}

// Result классифицирует ошибку для метрик.
func Result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case domain.IsNotFound(err):
		return metrics.ResultNotFound
	case domain.IsValidation(err):
		return metrics.ResultValidation
	case domain.IsConflict(err):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
