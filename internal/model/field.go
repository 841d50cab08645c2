package model

import "fmt"

// FieldType is the display type reported for a field path.
type FieldType int

const (
	FieldKeyword FieldType = iota
	FieldPhrase
	FieldNumber
	FieldTimestamp
)

func (t FieldType) String() string {
	switch t {
	case FieldKeyword:
		return "keyword"
	case FieldPhrase:
		return "phrase"
	case FieldNumber:
		return "number"
	case FieldTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// FieldInfo names a field and its display type.
type FieldInfo struct {
	Name string
	Type FieldType
}
