// Package engine keeps every derived field of an estimate consistent with its
// leaf inputs. All functions are pure: they read and rewrite an in-memory
// snapshot and never touch storage.
package engine

import (
	"estimate-backend/internal/domain"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Round2 rounds a money value to two places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes a measurement's total from the dimensions its unit class uses.
// An absent class dimension is the multiplicative identity; an explicit 0 yields 0.
// A line with no class dimension set at all measures nothing and totals 0, as
// do specification lines. The result is rounded to the stored quantity scale.
func LineTotal(line domain.MeasurementLine) (decimal.Decimal, error) {
	if !line.Aggregates() {
		return decimal.Zero, nil
	}
	class, err := domain.ParseUnitClass(line.Unit)
	if err != nil {
		return decimal.Zero, err
	}
	total, measured := one, false
	for _, d := range class.Dimensions() {
		v := line.Dimension(d)
		if !v.Valid {
			continue
		}
		total = total.Mul(v.Decimal)
		measured = true
	}
	if !measured {
		return decimal.Zero, nil
	}
	return total.Round(domain.QuantityPlaces), nil
}

// ItemTotals computes quantity and amount of an item from the lines linked to it.
// quantity = sum(total) - sum(deduction); amount = round2(quantity x rate).
func ItemTotals(rate decimal.Decimal, lines []domain.MeasurementLine) (quantity, amount decimal.Decimal) {
	sum := decimal.Zero
	deductions := decimal.Zero
	for _, l := range lines {
		if !l.Aggregates() {
			continue
		}
		sum = sum.Add(l.Total)
		deductions = deductions.Add(l.Deduction)
	}
	quantity = sum.Sub(deductions).Round(domain.QuantityPlaces)
	return quantity, Round2(quantity.Mul(rate))
}

// Summary computes the project-level General Abstract record from part totals.
func Summary(project domain.Project, entries []domain.GeneralAbstractEntry) domain.ProjectSummary {
	subtotal := decimal.Zero
	for _, e := range entries {
		subtotal = subtotal.Add(e.PartTotal)
	}
	overhead := Round2(subtotal.Mul(project.OverheadRate))
	after := subtotal.Add(overhead)
	tax := Round2(after.Mul(project.TaxRate))
	return domain.ProjectSummary{
		ProjectID:      project.ProjectID,
		Subtotal:       subtotal,
		OverheadRate:   project.OverheadRate,
		OverheadCharge: overhead,
		AfterOverhead:  after,
		TaxRate:        project.TaxRate,
		TaxCharge:      tax,
		GrandTotal:     after.Add(tax),
	}
}
