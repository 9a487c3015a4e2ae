package graph

// FaultKind classifies a decode-time shape problem.
type FaultKind string

const (
	FaultMissing FaultKind = "missing"
	FaultType    FaultKind = "type"
)

// FieldFault records a field that was absent or had the wrong JSON type.
type FieldFault struct {
	Field string
	Kind  FaultKind
	// Want names the expected type for FaultType.
	Want string
}

func missing(field string) FieldFault {
	return FieldFault{Field: field, Kind: FaultMissing}
}

func wrongType(field, want string) FieldFault {
	return FieldFault{Field: field, Kind: FaultType, Want: want}
}
