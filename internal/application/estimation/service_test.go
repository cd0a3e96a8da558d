package estimation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"estimate-backend/internal/domain"
	"estimate-backend/internal/engine"
	"estimate-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return NewService(db, zerolog.Nop())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func dims(count, length, breadth, height float64) map[string]interface{} {
	return map[string]interface{}{"count": count, "length": length, "breadth": breadth, "height": height}
}

type scenario struct {
	svc       *Service
	projectID uuid.UUID
	concrete  *ItemResult
	doors     *ItemResult
}

// newScenario builds a two-part project: concrete at 4850/cum measured as
// 90 + 20 + 4 cum, and doors at 500/nos counted as 2.
func newScenario(t *testing.T) scenario {
	t.Helper()
	ctx := context.Background()
	svc := setupService(t)
	rate07, rate13 := dec("0.07"), dec("0.13")
	tree, err := svc.CreateProject(ctx, ProjectInput{Name: "Clinic", OverheadRate: &rate07, TaxRate: &rate13})
	require.NoError(t, err)
	pid := tree.Project.ProjectID

	ground, err := svc.AddPart(ctx, pid, "Ground floor")
	require.NoError(t, err)
	concrete, err := svc.AddAbstractItem(ctx, ground.Part.Part.PartID, ItemInput{Code: "2.1.1", Description: "Cement concrete 1:2:4", Unit: "cum", Rate: dec("4850.00")})
	require.NoError(t, err)
	measures := concrete.Skeleton[1:]
	require.Len(t, measures, 3)
	for i, d := range []map[string]interface{}{dims(1, 10, 3, 3), dims(1, 5, 2, 2), dims(1, 2, 2, 1)} {
		_, err := svc.ApplyMeasurementEdit(ctx, measures[i].LineID, d)
		require.NoError(t, err)
	}

	first, err := svc.AddPart(ctx, pid, "First floor")
	require.NoError(t, err)
	doors, err := svc.AddAbstractItem(ctx, first.Part.Part.PartID, ItemInput{Description: "Flush door", Unit: "nos", Rate: dec("500")})
	require.NoError(t, err)
	_, err = svc.ApplyMeasurementEdit(ctx, doors.Skeleton[1].LineID, map[string]interface{}{"count": "2"})
	require.NoError(t, err)

	return scenario{svc: svc, projectID: pid, concrete: concrete, doors: doors}
}

func TestScenario_IncrementalPropagation(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	tree, err := sc.svc.LoadProject(ctx, sc.projectID)
	require.NoError(t, err)
	require.Len(t, tree.Parts, 2)
	item := tree.Parts[0].Items[0]
	assertDec(t, "114", item.Quantity)
	assertDec(t, "552900", item.Amount)
	assertDec(t, "552900", tree.Parts[0].Entry.PartTotal)
	assertDec(t, "1000", tree.Parts[1].Entry.PartTotal)
	assertDec(t, "553900", tree.Summary.Subtotal)
	beforeGrand := tree.Summary.GrandTotal
	beforeSubtotal := tree.Summary.Subtotal

	res, err := sc.svc.ApplyMeasurementEdit(ctx, sc.concrete.Skeleton[1].LineID, map[string]interface{}{"height": 4.0})
	require.NoError(t, err)
	assertDec(t, "120", res.Line.Total)
	assertDec(t, "144", res.Part.Items[0].Quantity)
	assertDec(t, "698400", res.Part.Items[0].Amount)
	assertDec(t, "698400", res.Part.Entry.PartTotal)
	assertDec(t, "145500", res.Summary.Subtotal.Sub(beforeSubtotal))
	assertDec(t, "175924.05", res.Summary.GrandTotal.Sub(beforeGrand))

	after, err := sc.svc.LoadProject(ctx, sc.projectID)
	require.NoError(t, err)
	assertDec(t, "1000", after.Parts[1].Entry.PartTotal, "other parts are untouched")
	assertDec(t, "1000", after.Parts[1].Items[0].Amount)
	assertDec(t, res.Summary.GrandTotal.String(), after.Summary.GrandTotal)
}

func TestIncrementalMatchesFullRecompute(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	before, err := sc.svc.LoadProject(ctx, sc.projectID)
	require.NoError(t, err)
	tree, res, err := sc.svc.RecomputeProject(ctx, sc.projectID)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assertDec(t, before.Summary.GrandTotal.String(), tree.Summary.GrandTotal)

	again, _, err := sc.svc.RecomputeProject(ctx, sc.projectID)
	require.NoError(t, err)
	assert.Equal(t, tree.Summary.GrandTotal.String(), again.Summary.GrandTotal.String())
	assert.Equal(t, tree.Summary.TaxCharge.String(), again.Summary.TaxCharge.String())
	assert.Equal(t, tree.Summary.OverheadCharge.String(), again.Summary.OverheadCharge.String())
}

func TestSummaryIdentities(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	for _, rates := range [][2]string{{"0", "0"}, {"0.1", "0.18"}, {"0.125", "0.05"}} {
		o, x := dec(rates[0]), dec(rates[1])
		res, err := sc.svc.UpdateProjectRates(ctx, sc.projectID, &o, &x)
		require.NoError(t, err)
		s := res.Summary
		assertDec(t, "553900", s.Subtotal)
		assertDec(t, s.Subtotal.Add(s.OverheadCharge).String(), s.AfterOverhead)
		assertDec(t, s.AfterOverhead.Add(s.TaxCharge).String(), s.GrandTotal)
		assertDec(t, rates[0], s.OverheadRate)
	}
}

func TestAddAbstractItem_VolumeSkeleton(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	tree, err := svc.CreateProject(ctx, ProjectInput{Name: "Depot"})
	require.NoError(t, err)
	assertDec(t, "0.07", tree.Project.OverheadRate)
	part, err := svc.AddPart(ctx, tree.Project.ProjectID, "Foundations")
	require.NoError(t, err)

	res, err := svc.AddAbstractItem(ctx, part.Part.Part.PartID, ItemInput{Description: "Earthwork in excavation", Unit: "m3", Rate: dec("250")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Item.Ordinal)
	require.Len(t, res.Skeleton, 4)

	measures := 0
	for _, l := range res.Skeleton {
		require.NotNil(t, l.AbstractItemID)
		assert.Equal(t, res.Item.ItemID, *l.AbstractItemID)
		if l.Kind == domain.LineKindMeasure {
			measures++
		}
	}
	assert.Equal(t, 3, measures)
	assert.Equal(t, domain.LineKindSpecification, res.Skeleton[0].Kind)
	assertDec(t, "0", res.Item.Quantity)
	assert.Empty(t, res.Warnings)

	second, err := svc.AddAbstractItem(ctx, part.Part.Part.PartID, ItemInput{Description: "Plaster", Unit: "sqm", Rate: dec("180")})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Item.Ordinal)
	assert.Equal(t, "2.1", second.Skeleton[1].ItemCode)
	assert.Len(t, second.Part.Lines, 7)
}

func TestValidationLeavesStateUnchanged(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	partID := sc.concrete.Item.PartID
	lineID := sc.concrete.Skeleton[1].LineID

	_, err := sc.svc.ApplyMeasurementEdit(ctx, lineID, map[string]interface{}{"length": -1.0})
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.ApplyMeasurementEdit(ctx, lineID, map[string]interface{}{"total": 5.0})
	assert.True(t, domain.IsValidation(err), "derived fields are protected")
	_, err = sc.svc.ApplyMeasurementEdit(ctx, lineID, map[string]interface{}{"unit": "bags"})
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.ApplyRateEdit(ctx, sc.concrete.Item.ItemID, dec("-1"))
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.ApplyItemEdit(ctx, sc.concrete.Item.ItemID, map[string]interface{}{"rate": "4,850"})
	assert.True(t, domain.IsValidation(err), "malformed rate")
	_, err = sc.svc.ApplyItemEdit(ctx, sc.concrete.Item.ItemID, map[string]interface{}{"amount": 1.0})
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.AddAbstractItem(ctx, partID, ItemInput{Description: "Cement", Unit: "bags", Rate: dec("400")})
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.AddPart(ctx, sc.projectID, "GROUND FLOOR")
	assert.True(t, domain.IsValidation(err), "part names are unique case-insensitively")
	_, err = sc.svc.AddPart(ctx, sc.projectID, "Roof/Terrace")
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.RenamePart(ctx, partID, "First floor")
	assert.True(t, domain.IsValidation(err))

	tree, err := sc.svc.LoadProject(ctx, sc.projectID)
	require.NoError(t, err)
	assertDec(t, "552900", tree.Parts[0].Items[0].Amount)
	assert.Len(t, tree.Parts, 2)
	assert.Len(t, tree.Parts[0].Items, 1)
}

func TestApplyRateEdit(t *testing.T) {
	sc := newScenario(t)
	res, err := sc.svc.ApplyRateEdit(context.Background(), sc.concrete.Item.ItemID, dec("5000"))
	require.NoError(t, err)
	assertDec(t, "570000", res.Part.Items[0].Amount)
	assertDec(t, "571000", res.Summary.Subtotal)
}

func TestDeleteOnlyItemZeroesPartTotal(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	res, err := sc.svc.DeleteAbstractItem(ctx, sc.concrete.Item.ItemID)
	require.NoError(t, err)
	assert.Empty(t, res.Part.Items)
	assert.Empty(t, res.Part.Lines, "the item's lines go with it")
	assertDec(t, "0", res.Part.Entry.PartTotal)
	assertDec(t, "1000", res.Summary.Subtotal)

	again, err := sc.svc.AddAbstractItem(ctx, res.Part.Part.PartID, ItemInput{Description: "PCC", Unit: "cum", Rate: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Item.Ordinal)
}

func TestOrphanLineWarning(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	partID := sc.concrete.Item.PartID

	res, err := sc.svc.AddMeasurementLine(ctx, partID, LineInput{
		ItemCode: "9.1", Unit: "cum",
		Count: decimal.NewNullDecimal(dec("1")), Length: decimal.NewNullDecimal(dec("100")),
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, engine.WarningOrphanLine, res.Warnings[0].Code)
	assert.Equal(t, res.Line.LineID, res.Warnings[0].LineID)
	assertDec(t, "100", res.Line.Total)
	assertDec(t, "552900", res.Part.Entry.PartTotal, "orphans feed no sum")

	var stored []engine.Warning
	require.NoError(t, json.Unmarshal(res.Summary.Warnings, &stored))
	assert.Len(t, stored, 1)

	_, full, err := sc.svc.RecomputeProject(ctx, sc.projectID)
	require.NoError(t, err)
	assert.Len(t, full.Warnings, 1)

	fixed, err := sc.svc.ApplyMeasurementEdit(ctx, res.Line.LineID, map[string]interface{}{"item_code": "1.9", "height": 1.0, "breadth": 1.0})
	require.NoError(t, err)
	assert.Empty(t, fixed.Warnings)
	assertDec(t, "214", fixed.Part.Items[0].Quantity)
	require.NoError(t, json.Unmarshal(fixed.Summary.Warnings, &stored))
	assert.Empty(t, stored)
}

func TestAddMeasurementLine_InheritsUnitAndDeducts(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	itemID := sc.concrete.Item.ItemID
	res, err := sc.svc.AddMeasurementLine(ctx, sc.concrete.Item.PartID, LineInput{
		AbstractItemID: &itemID,
		ItemCode:       "1.4",
		Description:    "Deduct openings",
		Deduction:      dec("6.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cum", res.Line.Unit)
	assertDec(t, "107.5", res.Part.Items[0].Quantity)
	assertDec(t, "521375", res.Part.Items[0].Amount)

	_, err = sc.svc.AddMeasurementLine(ctx, sc.concrete.Item.PartID, LineInput{ItemCode: "1.5", Unit: "cum", Count: decimal.NewNullDecimal(dec("-2"))})
	assert.True(t, domain.IsValidation(err))
	_, err = sc.svc.AddMeasurementLine(ctx, sc.concrete.Item.PartID, LineInput{ItemCode: "1.5", Kind: "note", Unit: "cum"})
	assert.True(t, domain.IsValidation(err))
}

func TestDeleteMeasurementLine(t *testing.T) {
	sc := newScenario(t)
	res, err := sc.svc.DeleteMeasurementLine(context.Background(), sc.concrete.Skeleton[3].LineID)
	require.NoError(t, err)
	assertDec(t, "110", res.Part.Items[0].Quantity)
	assertDec(t, "533500", res.Part.Entry.PartTotal)
}

func TestRenameAndDeletePart(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	renamed, err := sc.svc.RenamePart(ctx, sc.doors.Item.PartID, "Joinery")
	require.NoError(t, err)
	assert.Equal(t, "Joinery", renamed.Part.Entry.PartName)

	res, err := sc.svc.DeletePart(ctx, sc.doors.Item.PartID)
	require.NoError(t, err)
	assertDec(t, "552900", res.Summary.Subtotal)

	tree, err := sc.svc.LoadProject(ctx, sc.projectID)
	require.NoError(t, err)
	require.Len(t, tree.Parts, 1)

	_, err = sc.svc.DeletePart(ctx, sc.doors.Item.PartID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = sc.svc.ApplyRateEdit(ctx, sc.doors.Item.ItemID, dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderIndependence(t *testing.T) {
	perms := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}
	values := []map[string]interface{}{dims(1, 10, 3, 3), dims(1, 5, 2, 2), dims(1, 2, 2, 1)}
	for _, perm := range perms {
		svc := setupService(t)
		ctx := context.Background()
		tree, err := svc.CreateProject(ctx, ProjectInput{Name: "Perm"})
		require.NoError(t, err)
		part, err := svc.AddPart(ctx, tree.Project.ProjectID, "Part 1")
		require.NoError(t, err)
		item, err := svc.AddAbstractItem(ctx, part.Part.Part.PartID, ItemInput{Description: "Concrete", Unit: "cum", Rate: dec("4850")})
		require.NoError(t, err)
		var last *LineResult
		for slot, idx := range perm {
			last, err = svc.ApplyMeasurementEdit(ctx, item.Skeleton[slot+1].LineID, values[idx])
			require.NoError(t, err)
		}
		assertDec(t, "114", last.Part.Items[0].Quantity)
	}
}

func TestConcurrentEditsSerialise(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	values := []map[string]interface{}{dims(2, 10, 3, 3), dims(2, 5, 2, 2), dims(2, 2, 2, 1)}

	var wg sync.WaitGroup
	errs := make([]error, len(values))
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sc.svc.ApplyMeasurementEdit(ctx, sc.concrete.Skeleton[i+1].LineID, values[i])
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	tree, err := sc.svc.Snapshot(ctx, sc.projectID)
	require.NoError(t, err)
	assertDec(t, "228", tree.Parts[0].Items[0].Quantity)
	assertDec(t, "1105800", tree.Parts[0].Entry.PartTotal)
	assertDec(t, "1106800", tree.Summary.Subtotal)
}

func TestConsistencyFailureRollsBack(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	require.NoError(t, sc.svc.DB.Create(&domain.GeneralAbstractEntry{
		ProjectID: sc.projectID, PartID: uuid.New(), PartName: "ghost", PartTotal: dec("10"),
	}).Error)

	_, _, err := sc.svc.RecomputeProject(ctx, sc.projectID)
	assert.ErrorIs(t, err, domain.ErrConsistency)
}

func TestImportProject(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	itemID := uuid.New()
	tree := &domain.ProjectTree{
		Project: domain.Project{Name: "Imported", OverheadRate: dec("0.07"), TaxRate: dec("0.13")},
		Parts: []domain.PartTree{{
			Part:  domain.Part{Name: "Block A"},
			Items: []domain.AbstractItem{{ItemID: itemID, Ordinal: 1, Description: "Concrete", Unit: "cum", Rate: dec("4850")}},
			Lines: []domain.MeasurementLine{
				{AbstractItemID: &itemID, ItemCode: "1.1", Unit: "cum", Count: decimal.NewNullDecimal(dec("1")), Length: decimal.NewNullDecimal(dec("10")), Breadth: decimal.NewNullDecimal(dec("3")), Height: decimal.NewNullDecimal(dec("3")), Position: 1},
				{ItemCode: "1.2", Unit: "cum", Count: decimal.NewNullDecimal(dec("1")), Length: decimal.NewNullDecimal(dec("12")), Position: 2},
				{ItemCode: "4.1", Unit: "cum", Count: decimal.NewNullDecimal(dec("1")), Position: 3},
			},
		}},
	}
	id, res, err := svc.ImportProject(ctx, tree)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 1)

	got, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Parts, 1)
	assertDec(t, "102", got.Parts[0].Items[0].Quantity)
	assertDec(t, "494700", got.Parts[0].Entry.PartTotal)
	assertDec(t, "494700", got.Summary.Subtotal)

	_, _, err = svc.ImportProject(ctx, &domain.ProjectTree{
		Project: domain.Project{Name: "Dup"},
		Parts:   []domain.PartTree{{Part: domain.Part{Name: "A"}}, {Part: domain.Part{Name: "a"}}},
	})
	assert.True(t, domain.IsValidation(err))
}

func validationField(t *testing.T, err error) string {
	t.Helper()
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Field
}

func TestImportProject_NumbersItemsWithoutOrdinal(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	line := func(code string) domain.MeasurementLine {
		return domain.MeasurementLine{ItemCode: code, Unit: "m", Count: decimal.NewNullDecimal(dec("1")), Length: decimal.NewNullDecimal(dec("10"))}
	}
	id, res, err := svc.ImportProject(ctx, &domain.ProjectTree{
		Project: domain.Project{Name: "Boundary"},
		Parts: []domain.PartTree{{
			Part: domain.Part{Name: "Site"},
			Items: []domain.AbstractItem{
				{Description: "Plaster", Unit: "m", Rate: dec("5")},
				{Ordinal: 1, Description: "Wall", Unit: "m", Rate: dec("20")},
			},
			Lines: []domain.MeasurementLine{line("1.1"), line("2.1")},
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	got, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	byName := map[string]domain.AbstractItem{}
	for _, it := range got.Parts[0].Items {
		byName[it.Description] = it
	}
	assert.Equal(t, 1, byName["Wall"].Ordinal)
	assert.Equal(t, 2, byName["Plaster"].Ordinal, "the explicit ordinal keeps its slot")
	assertDec(t, "10", byName["Wall"].Quantity)
	assertDec(t, "10", byName["Plaster"].Quantity)
	assertDec(t, "250", got.Parts[0].Entry.PartTotal)
}

func TestImportProject_RejectsBadOrdinals(t *testing.T) {
	svc := setupService(t)
	for name, items := range map[string][]domain.AbstractItem{
		"repeated": {{Ordinal: 1, Description: "Wall", Unit: "m"}, {Ordinal: 1, Description: "Door", Unit: "nos"}},
		"negative": {{Ordinal: -1, Description: "Wall", Unit: "m"}},
	} {
		_, _, err := svc.ImportProject(context.Background(), &domain.ProjectTree{
			Project: domain.Project{Name: "Bad"},
			Parts:   []domain.PartTree{{Part: domain.Part{Name: "Site"}, Items: items}},
		})
		assert.Equal(t, "ordinal", validationField(t, err), name)
	}
}

func TestDecimalScaleIsBoundedByStorage(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	itemID := sc.concrete.Item.ItemID
	partID := sc.concrete.Item.PartID

	_, err := sc.svc.ApplyRateEdit(ctx, itemID, dec("12.345"))
	assert.Equal(t, "rate", validationField(t, err))
	res, err := sc.svc.ApplyRateEdit(ctx, itemID, dec("12.3400"))
	require.NoError(t, err, "trailing zeros fit")
	assertDec(t, "12.34", res.Part.Items[0].Rate)

	_, err = sc.svc.AddMeasurementLine(ctx, partID, LineInput{ItemCode: "1.5", Unit: "cum", Length: decimal.NewNullDecimal(dec("1.23456"))})
	assert.Equal(t, "length", validationField(t, err))
	_, err = sc.svc.AddMeasurementLine(ctx, partID, LineInput{ItemCode: "1.5", Unit: "cum", Deduction: dec("0.00001")})
	assert.Equal(t, "deduction", validationField(t, err))
	_, err = sc.svc.ApplyMeasurementEdit(ctx, sc.concrete.Skeleton[1].LineID, map[string]interface{}{"height": "0.12345"})
	assert.Equal(t, "height", validationField(t, err))

	tax := dec("0.12345")
	_, err = sc.svc.UpdateProjectRates(ctx, sc.projectID, nil, &tax)
	assert.Equal(t, "tax_rate", validationField(t, err))
}

func TestAmountSurvivesReload(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	_, err := sc.svc.ApplyMeasurementEdit(ctx, sc.concrete.Skeleton[1].LineID, dims(1, 1.2345, 1.2345, 1.2345))
	require.NoError(t, err)
	_, err = sc.svc.ApplyRateEdit(ctx, sc.concrete.Item.ItemID, dec("12.35"))
	require.NoError(t, err)

	before, err := sc.svc.Snapshot(ctx, sc.projectID)
	require.NoError(t, err)
	item := before.Parts[0].Items[0]
	assert.True(t, item.Amount.Equal(engine.Round2(item.Quantity.Mul(item.Rate))))

	after, _, err := sc.svc.RecomputeProject(ctx, sc.projectID)
	require.NoError(t, err)
	assertDec(t, item.Quantity.String(), after.Parts[0].Items[0].Quantity)
	assertDec(t, item.Amount.String(), after.Parts[0].Items[0].Amount)
	assertDec(t, before.Summary.GrandTotal.String(), after.Summary.GrandTotal)
}

func TestProjectLocks(t *testing.T) {
	locks := NewProjectLocks()
	id := uuid.New()
	unlock := locks.Lock(id)

	other := locks.Lock(uuid.New())
	other()

	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		u := locks.Lock(id)
		close(acquired)
		u()
		close(done)
	}()
	select {
	case <-acquired:
		t.Fatal("second writer entered while the first held the lock")
	default:
	}
	unlock()
	<-done
	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
