package item

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/aquamarinepk/cruddemo/internal/platform/events"
	"github.com/aquamarinepk/cruddemo/internal/repository"
)

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = repository.ErrNotFound

// Service contains the business rules for items.
type Service struct {
	repo   ItemRepository
	log    platform.Logger
	tracer platform.Tracer
	events eventPublisher
	now    func() time.Time
}

type ServiceOption func(*Service)

func WithTracer(tracer platform.Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithPublisher sends item events to topic; an empty topic uses
// DefaultTopic.
func WithPublisher(pub events.Publisher, topic string) ServiceOption {
	return func(s *Service) {
		if topic == "" {
			topic = DefaultTopic
		}
		s.events.pub = pub
		s.events.topic = topic
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo ItemRepository, logger platform.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = platform.NewNoopLogger()
	}
	s := &Service{
		repo:   repo,
		log:    logger,
		tracer: platform.NoopTracer{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events.log = logger
	return s
}

func (s *Service) span(ctx context.Context, op string, attrs map[string]any) (context.Context, platform.Span) {
	return s.tracer.Start(ctx, "item."+op, attrs)
}

func (s *Service) Create(ctx context.Context, in Input) (_ *Item, err error) {
	ctx, span := s.span(ctx, "Create", nil)
	defer func() { span.End(err) }()

	item := in.toItem()
	item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.Touch(s.now())

	if _, err := s.repo.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.events.publish(ctx, Event{Type: EventCreated, IDs: []int64{item.ID}, Item: item, OccurredAt: item.CreatedAt})
	return item, nil
}

// CreateMany validates every input before saving any of them.
func (s *Service) CreateMany(ctx context.Context, ins []Input) (_ []*Item, err error) {
	ctx, span := s.span(ctx, "CreateMany", map[string]any{"count": len(ins)})
	defer func() { span.End(err) }()

	now := s.now()
	items := make([]*Item, len(ins))
	var failed platform.ValidationErrors
	for i, in := range ins {
		item := in.toItem()
		item.Normalize()
		if verr := item.Validate(); verr != nil {
			for _, e := range verr.(platform.ValidationErrors) {
				e.Field = fmt.Sprintf("[%d].%s", i, e.Field)
				failed = append(failed, e)
			}
			continue
		}
		item.Touch(now)
		items[i] = item
	}
	if len(failed) > 0 {
		return nil, failed
	}

	if _, err := s.repo.SaveAll(ctx, items); err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	s.events.publish(ctx, Event{Type: EventCreated, IDs: ids, OccurredAt: now})
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (_ *Item, err error) {
	ctx, span := s.span(ctx, "Get", map[string]any{"item.id": id})
	defer func() { span.End(err) }()
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Exists(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.span(ctx, "Exists", map[string]any{"item.id": id})
	defer func() { span.End(err) }()
	return s.repo.ExistsByID(ctx, id)
}

func (s *Service) List(ctx context.Context, p repository.Pageable) (_ repository.Page[*Item], err error) {
	ctx, span := s.span(ctx, "List", map[string]any{"page": p.Page, "size": p.Size, "sort": p.Sort.String()})
	defer func() { span.End(err) }()
	return s.repo.FindPage(ctx, p)
}

func (s *Service) ListAll(ctx context.Context, sort repository.Sort) (_ []*Item, err error) {
	ctx, span := s.span(ctx, "ListAll", map[string]any{"sort": sort.String()})
	defer func() { span.End(err) }()
	return s.repo.FindAll(ctx, sort)
}

func (s *Service) ListByIDs(ctx context.Context, ids []int64) (_ []*Item, err error) {
	ctx, span := s.span(ctx, "ListByIDs", map[string]any{"count": len(ids)})
	defer func() { span.End(err) }()
	return s.repo.FindAllByID(ctx, ids)
}

func (s *Service) Count(ctx context.Context) (_ int64, err error) {
	ctx, span := s.span(ctx, "Count", nil)
	defer func() { span.End(err) }()
	return s.repo.Count(ctx)
}

// Update applies the non-nil fields of patch.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (_ *Item, err error) {
	ctx, span := s.span(ctx, "Update", map[string]any{"item.id": id})
	defer func() { span.End(err) }()

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(item)
	return s.store(ctx, item)
}

// Replace overwrites every mutable field; CreatedAt is kept.
func (s *Service) Replace(ctx context.Context, id int64, in Input) (_ *Item, err error) {
	ctx, span := s.span(ctx, "Replace", map[string]any{"item.id": id})
	defer func() { span.End(err) }()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item := in.toItem()
	item.ID = current.ID
	item.CreatedAt = current.CreatedAt
	return s.store(ctx, item)
}

func (s *Service) store(ctx context.Context, item *Item) (*Item, error) {
	item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.Touch(s.now())
	if _, err := s.repo.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("update item %d: %w", item.ID, err)
	}
	s.events.publish(ctx, Event{Type: EventUpdated, IDs: []int64{item.ID}, Item: item, OccurredAt: item.UpdatedAt})
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.span(ctx, "Delete", map[string]any{"item.id": id})
	defer func() { span.End(err) }()

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.events.publish(ctx, Event{Type: EventDeleted, IDs: []int64{id}, OccurredAt: s.now()})
	return nil
}

// DeleteMany removes the listed items, ignoring IDs that do not exist.
// The deleted event names only the items that were there.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) (err error) {
	ctx, span := s.span(ctx, "DeleteMany", map[string]any{"count": len(ids)})
	defer func() { span.End(err) }()

	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	existing, err := s.repo.FindAllByID(ctx, ids)
	if err != nil {
		return fmt.Errorf("find items to delete: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}
	found := make([]int64, len(existing))
	for i, item := range existing {
		found[i] = item.ID
	}
	if err := s.repo.DeleteAllByID(ctx, found); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	s.events.publish(ctx, Event{Type: EventDeleted, IDs: found, OccurredAt: s.now()})
	return nil
}

func (s *Service) DeleteAll(ctx context.Context) (err error) {
	ctx, span := s.span(ctx, "DeleteAll", nil)
	defer func() { span.End(err) }()

	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all items: %w", err)
	}
	s.log.Info("items purged")
	s.events.publish(ctx, Event{Type: EventPurged, OccurredAt: s.now()})
	return nil
}
