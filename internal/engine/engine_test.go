package engine

import (
	"testing"

	"estimate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func cubicLine(partID, itemID uuid.UUID, code string, l, b, h string) domain.MeasurementLine {
	id := itemID
	return domain.MeasurementLine{
		LineID:         uuid.New(),
		PartID:         partID,
		AbstractItemID: &id,
		ItemCode:       code,
		Kind:           domain.LineKindMeasure,
		Unit:           "cum",
		Count:          nd("1"),
		Length:         nd(l),
		Breadth:        nd(b),
		Height:         nd(h),
	}
}

// scenarioTree: one part with one concrete item at 4850.00 fed by lines of 90, 20 and 4 cum,
// plus a second part with a fixed 1000.00 item.
func scenarioTree() *domain.ProjectTree {
	projectID := uuid.New()
	p1 := domain.Part{PartID: uuid.New(), ProjectID: projectID, Name: "Ground floor", Position: 1}
	p2 := domain.Part{PartID: uuid.New(), ProjectID: projectID, Name: "First floor", Position: 2}
	concrete := domain.AbstractItem{ItemID: uuid.New(), PartID: p1.PartID, Ordinal: 1, Code: "2.1.1",
		Description: "Cement concrete 1:2:4", Unit: "cum", Rate: dec("4850.00")}
	doors := domain.AbstractItem{ItemID: uuid.New(), PartID: p2.PartID, Ordinal: 1,
		Description: "Flush door", Unit: "nos", Rate: dec("500.00")}
	return &domain.ProjectTree{
		Project: domain.Project{ProjectID: projectID, Name: "Clinic", OverheadRate: dec("0.07"), TaxRate: dec("0.13")},
		Parts: []domain.PartTree{
			{
				Part:  p1,
				Items: []domain.AbstractItem{concrete},
				Lines: []domain.MeasurementLine{
					cubicLine(p1.PartID, concrete.ItemID, "1.1", "10", "3", "3"),
					cubicLine(p1.PartID, concrete.ItemID, "1.2", "5", "2", "2"),
					cubicLine(p1.PartID, concrete.ItemID, "1.3", "2", "2", "1"),
				},
			},
			{
				Part:  p2,
				Items: []domain.AbstractItem{doors},
				Lines: []domain.MeasurementLine{
					{LineID: uuid.New(), PartID: p2.PartID, ItemCode: "1.1", Unit: "nos", Count: nd("2")},
				},
			},
		},
	}
}

func TestLineTotal_PerUnitClass(t *testing.T) {
	cases := []struct {
		unit string
		want string
	}{
		{"cum", "24"},
		{"Sq. M", "12"},
		{"rm", "6"},
		{"nos", "2"},
	}
	for _, tc := range cases {
		line := domain.MeasurementLine{Unit: tc.unit, Count: nd("2"), Length: nd("3"), Breadth: nd("2"), Height: nd("2")}
		got, err := LineTotal(line)
		require.NoError(t, err, tc.unit)
		assert.True(t, dec(tc.want).Equal(got), "%s: got %s", tc.unit, got)
	}
}

func TestLineTotal_AbsentDimensionIsIdentity(t *testing.T) {
	line := domain.MeasurementLine{Unit: "sqm", Length: nd("4"), Breadth: nd("2.5")}
	got, err := LineTotal(line)
	require.NoError(t, err)
	assert.Equal(t, "10", got.String())

	line.Count = nd("0")
	got, err = LineTotal(line)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = LineTotal(domain.MeasurementLine{Unit: "cum", Deduction: dec("2")})
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "a line with nothing measured adds nothing")
}

func TestLineTotal_SpecificationAndUnknownUnit(t *testing.T) {
	got, err := LineTotal(domain.MeasurementLine{Kind: domain.LineKindSpecification, Unit: "cum", Count: nd("3")})
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = LineTotal(domain.MeasurementLine{Unit: "furlong", Count: nd("1")})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestRecomputeProject_Scenario(t *testing.T) {
	tree := scenarioTree()
	res, err := RecomputeProject(tree)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	item := tree.Parts[0].Items[0]
	assert.Equal(t, "114", item.Quantity.String())
	assert.Equal(t, "552900", item.Amount.String())
	assert.Equal(t, "552900", tree.Parts[0].Entry.PartTotal.String())
	assert.Equal(t, "1000", tree.Parts[1].Entry.PartTotal.String())

	before := tree.Summary
	otherPart := tree.Parts[1].Entry.PartTotal

	tree.Parts[0].Lines[0].Height = nd("4")
	_, err = RecomputeProject(tree)
	require.NoError(t, err)

	item = tree.Parts[0].Items[0]
	assert.Equal(t, "120", tree.Parts[0].Lines[0].Total.String())
	assert.Equal(t, "144", item.Quantity.String())
	assert.Equal(t, "698400", item.Amount.String())
	assert.True(t, otherPart.Equal(tree.Parts[1].Entry.PartTotal))

	after := tree.Summary
	assert.Equal(t, "145500", after.Subtotal.Sub(before.Subtotal).String())
	assert.Equal(t, "10185", after.OverheadCharge.Sub(before.OverheadCharge).String())
	assert.Equal(t, "175924.05", after.GrandTotal.Sub(before.GrandTotal).String())
}

func TestRecomputeProject_SummaryIdentities(t *testing.T) {
	for _, rates := range [][2]string{{"0.07", "0.13"}, {"0", "0"}, {"0.15", "0.18"}, {"0.333", "0.05"}} {
		tree := scenarioTree()
		tree.Project.OverheadRate = dec(rates[0])
		tree.Project.TaxRate = dec(rates[1])
		_, err := RecomputeProject(tree)
		require.NoError(t, err)

		s := tree.Summary
		sum := decimal.Zero
		for _, p := range tree.Parts {
			sum = sum.Add(p.Entry.PartTotal)
		}
		assert.True(t, s.Subtotal.Equal(sum))
		assert.True(t, s.AfterOverhead.Equal(s.Subtotal.Add(s.OverheadCharge)))
		assert.True(t, s.GrandTotal.Equal(s.AfterOverhead.Add(s.TaxCharge)))
	}
}

func summaryStrings(s domain.ProjectSummary) []string {
	return []string{s.Subtotal.String(), s.OverheadCharge.String(), s.AfterOverhead.String(), s.TaxCharge.String(), s.GrandTotal.String()}
}

func TestRecomputeProject_Idempotent(t *testing.T) {
	tree := scenarioTree()
	_, err := RecomputeProject(tree)
	require.NoError(t, err)
	first := summaryStrings(tree.Summary)
	firstQty := tree.Parts[0].Items[0].Quantity.String()

	_, err = RecomputeProject(tree)
	require.NoError(t, err)
	assert.Equal(t, first, summaryStrings(tree.Summary))
	assert.Equal(t, firstQty, tree.Parts[0].Items[0].Quantity.String())
}

func TestRecomputePart_OrderIndependent(t *testing.T) {
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	base := scenarioTree().Parts[0]
	for _, perm := range perms {
		pt := base
		pt.Items = append([]domain.AbstractItem(nil), base.Items...)
		pt.Lines = []domain.MeasurementLine{base.Lines[perm[0]], base.Lines[perm[1]], base.Lines[perm[2]]}
		_, err := RecomputePart(&pt)
		require.NoError(t, err)
		assert.Equal(t, "114", pt.Items[0].Quantity.String(), "perm %v", perm)
	}
}

func TestRecomputePart_Deductions(t *testing.T) {
	pt := scenarioTree().Parts[0]
	pt.Lines[1].Deduction = dec("6.5")
	_, err := RecomputePart(&pt)
	require.NoError(t, err)
	assert.Equal(t, "107.5", pt.Items[0].Quantity.String())
	assert.Equal(t, "521375", pt.Items[0].Amount.String())
}

func TestRecomputePart_NoItemsZeroTotal(t *testing.T) {
	pt := scenarioTree().Parts[0]
	pt.Items = nil
	pt.Lines = nil
	w, err := RecomputePart(&pt)
	require.NoError(t, err)
	assert.Empty(t, w)
	assert.True(t, pt.Entry.PartTotal.IsZero())
}

func TestRecomputePart_ItemWithoutLinesIsZero(t *testing.T) {
	pt := scenarioTree().Parts[0]
	pt.Lines = nil
	_, err := RecomputePart(&pt)
	require.NoError(t, err)
	assert.True(t, pt.Items[0].Quantity.IsZero())
	assert.True(t, pt.Items[0].Amount.IsZero())
}

func TestResolveLinks_PrefixAndOrphans(t *testing.T) {
	pt := scenarioTree().Parts[0]
	for i := range pt.Lines {
		pt.Lines[i].AbstractItemID = nil
	}
	pt.Lines = append(pt.Lines, domain.MeasurementLine{LineID: uuid.New(), PartID: pt.Part.PartID, ItemCode: "7.1", Unit: "cum", Count: nd("5")})
	pt.Lines = append(pt.Lines, domain.MeasurementLine{LineID: uuid.New(), PartID: pt.Part.PartID, ItemCode: "", Unit: "cum", Count: nd("5")})

	w, err := RecomputePart(&pt)
	require.NoError(t, err)
	assert.Equal(t, "114", pt.Items[0].Quantity.String())
	require.Len(t, w, 2)
	assert.Equal(t, WarningOrphanLine, w[0].Code)
	assert.Equal(t, "7.1", w[0].ItemCode)
	assert.Len(t, pt.Lines, 5, "orphans stay in the part")
}

func TestResolveLinks_ExplicitReferenceWinsOverPrefix(t *testing.T) {
	pt := scenarioTree().Parts[0]
	second := domain.AbstractItem{ItemID: uuid.New(), PartID: pt.Part.PartID, Ordinal: 2, Description: "Brickwork", Unit: "cum", Rate: dec("10")}
	pt.Items = append(pt.Items, second)
	// Code says item 2, explicit reference says item 1.
	pt.Lines[2].ItemCode = "2.1"

	_, err := RecomputePart(&pt)
	require.NoError(t, err)
	assert.Equal(t, "114", pt.Items[0].Quantity.String())
	assert.True(t, pt.Items[1].Quantity.IsZero())
}

func TestResolveLinks_DanglingExplicitReferenceIsOrphan(t *testing.T) {
	pt := scenarioTree().Parts[0]
	ghost := uuid.New()
	pt.Lines[0].AbstractItemID = &ghost
	w, err := RecomputePart(&pt)
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.Equal(t, pt.Lines[0].LineID, w[0].LineID)
	assert.Equal(t, "24", pt.Items[0].Quantity.String())
}

func TestRecomputeProject_ConsistencyFailure(t *testing.T) {
	tree := scenarioTree()
	tree.Parts[1].Items[0].PartID = uuid.New()
	_, err := RecomputeProject(tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConsistency)
}

func TestRecomputeProject_SharedOrdinalIsConsistencyFailure(t *testing.T) {
	tree := scenarioTree()
	pt := &tree.Parts[0]
	pt.Items = append(pt.Items, domain.AbstractItem{ItemID: uuid.New(), PartID: pt.Part.PartID, Ordinal: 1,
		Description: "Brickwork", Unit: "cum", Rate: dec("10")})
	_, err := RecomputeProject(tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConsistency)
}

func TestLineTotal_RoundsToQuantityScale(t *testing.T) {
	got, err := LineTotal(domain.MeasurementLine{Unit: "sqm", Length: nd("1.2345"), Breadth: nd("1.2345")})
	require.NoError(t, err)
	assert.Equal(t, "1.524", got.String())
}

func TestItemTotals_AmountMatchesStoredQuantity(t *testing.T) {
	rate := dec("12.35")
	lines := []domain.MeasurementLine{
		{Unit: "sqm", Total: dec("1.00005")},
		{Unit: "sqm", Total: dec("2"), Deduction: dec("0.5")},
	}
	q, amount := ItemTotals(rate, lines)
	assert.Equal(t, "2.5001", q.String())
	assert.True(t, amount.Equal(Round2(q.Mul(rate))), "amount %s", amount)

	// Reloading the rounded quantity reproduces the same amount.
	q2, amount2 := ItemTotals(rate, []domain.MeasurementLine{{Unit: "sqm", Total: q}})
	assert.True(t, q.Equal(q2))
	assert.True(t, amount.Equal(amount2))
}

func TestItemOrdinal(t *testing.T) {
	n, ok := ItemOrdinal("12.3.1")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	n, ok = ItemOrdinal("4")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	_, ok = ItemOrdinal("a.1")
	assert.False(t, ok)
	_, ok = ItemOrdinal("0.1")
	assert.False(t, ok)
}
