// Package typeinfo describes the per-type metadata the runtime attaches to
// every process and heap object: its name, instance method set, and (once
// built) its dispatch table.
package typeinfo

import "unsafe"

// Method is one entry a type contributes to its dispatch table before slot
// assignment.
type Method struct {
	// Name is the method's source name.
	Name string
	// ShapeEncoding distinguishes overloads/specializations sharing a name;
	// hashed together with Name per the dispatch spec.
	ShapeEncoding string
	// IsDropper marks the type's destructor, always placed at slot 0.
	IsDropper bool
	// IsClosureCall marks a closure's invocation entry, placed at slot 1.
	IsClosureCall bool
}

// Descriptor is the runtime's per-type record: one exists per defined
// type, allocated once at startup and never mutated after BuildTables
// populates the Table field.
type Descriptor struct {
	Name    string
	Methods []Method

	// IsClosure marks the fixed closure layout (dropper at 0, call at 1).
	IsClosure bool

	// Table is filled in by internal/dispatch.BuildTables.
	Table *Table
}

// Table is a per-type method table, set once during startup.
type Table struct {
	Slots []Slot
}

// Slot is one entry of a method table.
type Slot struct {
	Hash      uint64
	Code      unsafe.Pointer
	Collided  bool
	MethodIdx int // index into the owning Descriptor.Methods, -1 if empty
}
