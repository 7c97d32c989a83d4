package catalog

import (
	"fmt"
	"strings"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

func validateCreateItem(input CreateItemInput) error {
	if strings.TrimSpace(input.SKU) == "" {
		return fmt.Errorf("%w: sku is required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if input.CategoryID <= 0 {
		return fmt.Errorf("%w: category is required", shared.ErrValidation)
	}
	if input.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price cannot be negative", shared.ErrValidation)
	}
	if input.Quantity < 0 {
		return ErrNegativeQuantity
	}
	minStock := DefaultMinStock
	if input.MinStock != nil {
		minStock = *input.MinStock
	}
	return validateThresholds(minStock, input.MaxStock)
}

func validateUpdateItem(input UpdateItemInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if input.CategoryID <= 0 {
		return fmt.Errorf("%w: category is required", shared.ErrValidation)
	}
	if input.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price cannot be negative", shared.ErrValidation)
	}
	if input.Quantity < 0 {
		return ErrNegativeQuantity
	}
	return validateThresholds(input.MinStock, input.MaxStock)
}

func validateThresholds(minStock int, maxStock *int) error {
	if minStock < 0 {
		return fmt.Errorf("%w: min stock cannot be negative", shared.ErrValidation)
	}
	if maxStock != nil && *maxStock <= minStock {
		return ErrInvalidThresholds
	}
	return nil
}

func validateCategory(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", shared.ErrValidation)
	}
	return nil
}
