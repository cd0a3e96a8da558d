package domain

// Mutability tags a field as user-editable or engine-derived.
type Mutability string

const (
	Editable Mutability = "editable"
	Derived  Mutability = "derived"
)

// Entity names used by the field registry.
const (
	EntityProject         = "project"
	EntityPart            = "part"
	EntityAbstractItem    = "abstract_item"
	EntityMeasurementLine = "measurement_line"
	EntityGeneralAbstract = "general_abstract"
	EntityProjectSummary  = "project_summary"
)

// Fields is the field registry. Derived fields are outputs of the aggregation
// engine and never accept external writes.
var Fields = map[string]map[string]Mutability{
	EntityProject: {
		"name": Editable, "location": Editable, "overhead_rate": Editable, "tax_rate": Editable,
	},
	EntityPart: {
		"name": Editable,
	},
	EntityAbstractItem: {
		"code": Editable, "description": Editable, "unit": Editable, "rate": Editable,
		"quantity": Derived, "amount": Derived,
	},
	EntityMeasurementLine: {
		"abstract_item_id": Editable, "item_code": Editable, "description": Editable, "unit": Editable,
		"count": Editable, "length": Editable, "breadth": Editable, "height": Editable, "deduction": Editable,
		"total": Derived,
	},
	EntityGeneralAbstract: {
		"part_total": Derived,
	},
	EntityProjectSummary: {
		"subtotal": Derived, "overhead_charge": Derived, "after_overhead": Derived,
		"tax_charge": Derived, "grand_total": Derived,
	},
}

// FieldMutability returns the tag of a field and whether the field is known.
func FieldMutability(entity, field string) (Mutability, bool) {
	m, ok := Fields[entity][field]
	return m, ok
}

// CheckWritable validates a set of field names against the registry.
func CheckWritable(entity string, fields []string) error {
	for _, f := range fields {
		m, ok := FieldMutability(entity, f)
		if !ok {
			return Validation(f, "unknown field")
		}
		if m == Derived {
			return Validation(f, "derived field cannot be set")
		}
	}
	return nil
}
