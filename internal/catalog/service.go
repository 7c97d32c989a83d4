package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
	"github.com/stockpile-erp/stockpile-erp/internal/stock"
)

// Service coordinates item and category provisioning. Balance mutations
// belong to the stock ledger; the registry only owns identity, pricing and
// threshold configuration, plus the one-off threshold evaluation on
// provisioning and direct edits.
type Service struct {
	repo     Repository
	notifier stock.Notifier
	audit    AuditPort
	logger   *slog.Logger
	printer  *message.Printer
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService builds Service.
func NewService(repo Repository, notifier stock.Notifier, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, audit: audit, logger: logger, printer: message.NewPrinter(language.English)}
}

// CreateItem provisions a new item. When the initial quantity already sits
// below the configured minimum the item is alerted once, treated as a first
// transition from no prior state.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	if input.ActorID == 0 {
		return Item{}, fmt.Errorf("item provisioning requires an acting user: %w", shared.ErrUnauthorized)
	}
	if err := validateCreateItem(input); err != nil {
		return Item{}, err
	}
	exists, err := s.repo.CategoryExists(ctx, input.CategoryID)
	if err != nil {
		return Item{}, err
	}
	if !exists {
		return Item{}, fmt.Errorf("category %d: %w", input.CategoryID, shared.ErrNotFound)
	}

	minStock := DefaultMinStock
	if input.MinStock != nil {
		minStock = *input.MinStock
	}
	item, err := s.repo.CreateItem(ctx, Item{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		CategoryID:  input.CategoryID,
		UnitPrice:   input.UnitPrice,
		Cost:        input.Cost,
		Quantity:    input.Quantity,
		MinStock:    minStock,
		MaxStock:    input.MaxStock,
	})
	if err != nil {
		return Item{}, err
	}

	// First evaluation: the absent prior balance counts as at-minimum, so a
	// low initial quantity fires exactly one event.
	s.evaluateTransition(ctx, item, item.MinStock)
	s.recordAudit(ctx, input.ActorID, "catalog:create", item)
	return item, nil
}

// UpdateItem applies a direct edit. Low-stock alerting is edge-based: it
// fires only when the item was not low before the edit and is low after it.
func (s *Service) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error) {
	if input.ActorID == 0 {
		return Item{}, fmt.Errorf("item edits require an acting user: %w", shared.ErrUnauthorized)
	}
	if err := validateUpdateItem(input); err != nil {
		return Item{}, err
	}
	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	exists, err := s.repo.CategoryExists(ctx, input.CategoryID)
	if err != nil {
		return Item{}, err
	}
	if !exists {
		return Item{}, fmt.Errorf("category %d: %w", input.CategoryID, shared.ErrNotFound)
	}

	wasLow := existing.IsLowStock()

	existing.Name = input.Name
	existing.Description = input.Description
	existing.CategoryID = input.CategoryID
	existing.UnitPrice = input.UnitPrice
	existing.Cost = input.Cost
	existing.Quantity = input.Quantity
	existing.MinStock = input.MinStock
	existing.MaxStock = input.MaxStock
	existing.IsActive = input.IsActive
	if err := s.repo.UpdateItem(ctx, existing); err != nil {
		return Item{}, err
	}

	if !wasLow {
		s.evaluateTransition(ctx, existing, existing.MinStock)
	}
	s.recordAudit(ctx, input.ActorID, "catalog:update", existing)
	return existing, nil
}

// DeleteItem soft-deletes: movement history must remain attributable, so
// items are never physically removed.
func (s *Service) DeleteItem(ctx context.Context, id int64, actorID int64) error {
	if actorID == 0 {
		return fmt.Errorf("item deletion requires an acting user: %w", shared.ErrUnauthorized)
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDeleteItem(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "catalog:delete", item)
	return nil
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns a filtered, paginated listing.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListLowStock returns active items below their minimum.
func (s *Service) ListLowStock(ctx context.Context) ([]Item, error) {
	return s.repo.ListLowStock(ctx)
}

// Summarize aggregates registry counters; the four queries run in parallel.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	var summary Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary.TotalItems, err = s.repo.CountItems(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		summary.LowStockItems, err = s.repo.CountLowStock(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		summary.OutOfStockItems, err = s.repo.CountOutOfStock(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		summary.TotalValue, err = s.repo.TotalValue(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	summary.TotalValueDisplay = s.printer.Sprintf("%.2f", summary.TotalValue)
	return summary, nil
}

// CreateCategory registers a category.
func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if err := validateCategory(c); err != nil {
		return Category{}, err
	}
	return s.repo.CreateCategory(ctx, c)
}

// GetCategory returns a single category.
func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// ListCategories returns active categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, c Category) error {
	if c.ID <= 0 {
		return fmt.Errorf("category %d: %w", c.ID, shared.ErrNotFound)
	}
	if err := validateCategory(c); err != nil {
		return err
	}
	return s.repo.UpdateCategory(ctx, c)
}

// DeleteCategory soft-deletes a category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteCategory(ctx, id)
}

// evaluateTransition notifies once when the quantity sits below the minimum,
// treating previousBalance as the given prior floor. Best-effort only.
func (s *Service) evaluateTransition(ctx context.Context, item Item, previousFloor int) {
	class, fired := stock.EvaluateThreshold(previousFloor, item.Quantity, item.MinStock)
	if !fired || s.notifier == nil {
		return
	}
	evt := stock.ThresholdEvent{
		ItemID:   item.ID,
		SKU:      item.SKU,
		Name:     item.Name,
		Class:    class,
		Quantity: item.Quantity,
		MinStock: item.MinStock,
	}
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.logger.Error("dispatch threshold alert failed",
			slog.Int64("item_id", item.ID),
			slog.String("class", string(class)),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, item Item) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "item",
		EntityID: fmt.Sprintf("%d", item.ID),
		Meta:     map[string]any{"sku": item.SKU, "quantity": item.Quantity},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
