package datarecording

import (
	"fmt"
	"reflect"
)

// The converters take the fast path through direct type assertions and fall
// back to field extraction by name for entry types defined in other
// packages.

func convertToSpanRow(entry any) spanRowDB {
	if row, ok := entry.(spanRowDB); ok {
		return row
	}

	return extractSpanRow(entry)
}

func convertToSessionRow(entry any) sessionRowDB {
	if row, ok := entry.(sessionRowDB); ok {
		return row
	}

	return extractSessionRow(entry)
}

func extractSpanRow(entry any) spanRowDB {
	v := reflect.ValueOf(entry)

	if v.Kind() != reflect.Struct {
		panic(fmt.Sprintf("expected struct for span entry, got %T", entry))
	}

	result := spanRowDB{}

	if field := v.FieldByName("ID"); field.IsValid() {
		result.ID = field.Int()
	}
	if field := v.FieldByName("Kind"); field.IsValid() {
		result.Kind = field.String()
	}
	if field := v.FieldByName("Subsystem"); field.IsValid() {
		result.Subsystem = field.String()
	}
	if field := v.FieldByName("ParentID"); field.IsValid() {
		result.ParentID = field.Int()
	}
	if field := v.FieldByName("CreatedAt"); field.IsValid() {
		result.CreatedAt = field.Float()
	}
	if field := v.FieldByName("DestroyedAt"); field.IsValid() {
		result.DestroyedAt = field.Float()
	}
	if field := v.FieldByName("Fires"); field.IsValid() {
		result.Fires = field.Int()
	}
	if field := v.FieldByName("Failures"); field.IsValid() {
		result.Failures = field.Int()
	}

	return result
}

func extractSessionRow(entry any) sessionRowDB {
	v := reflect.ValueOf(entry)

	if v.Kind() != reflect.Struct {
		panic(fmt.Sprintf("expected struct for session entry, got %T", entry))
	}

	result := sessionRowDB{}

	if field := v.FieldByName("TableName"); field.IsValid() {
		result.TableName = field.String()
	}
	if field := v.FieldByName("SessionStart"); field.IsValid() {
		result.SessionStart = field.Float()
	}
	if field := v.FieldByName("SessionEnd"); field.IsValid() {
		result.SessionEnd = field.Float()
	}

	return result
}
