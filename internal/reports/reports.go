// Package reports aggregates a user's expenses.
package reports

import (
	"context"
	"fmt"

	"expense-tracker/internal/models"
)

// ExpenseLister lists one owner's expenses.
type ExpenseLister interface {
	ListExpensesByOwner(ctx context.Context, ownerID int64, filter models.ExpenseFilter) ([]models.Expense, error)
}

// Engine computes expense reports.
type Engine struct {
	expenses ExpenseLister
}

// NewEngine creates an Engine reading from expenses.
func NewEngine(expenses ExpenseLister) *Engine {
	return &Engine{expenses: expenses}
}

// TotalsByCategory sums the owner's expense amounts per category, optionally
// bounded by canonical start and end dates. Categories without expenses are
// absent from the result.
func (e *Engine) TotalsByCategory(ctx context.Context, ownerID int64, startDate, endDate string) (map[string]float64, error) {
	expenses, err := e.expenses.ListExpensesByOwner(ctx, ownerID, models.ExpenseFilter{
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses for report: %w", err)
	}
	return SumByCategory(expenses), nil
}

// SumByCategory adds amounts per category in slice order.
func SumByCategory(expenses []models.Expense) map[string]float64 {
	totals := make(map[string]float64)
	for _, exp := range expenses {
		totals[exp.Category] += exp.Amount
	}
	return totals
}
