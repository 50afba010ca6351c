package manifest

// Validate enforces the invariants every normalized manifest must hold before
// it enters the graph: repo is a non-empty string.
func Validate(m *Manifest) error {
	if m == nil {
		return &ValidationError{Field: FieldRepo, Reason: "is missing (no manifest)"}
	}
	if m.Repo == "" {
		return &ValidationError{Field: FieldRepo, Reason: "must be a non-empty string"}
	}
	return nil
}
