package wasm

// Identifier names a host import or export as "module.field", matching the
// display form spec.md's Callable.Identifier calls for.
type Identifier struct {
	Module string
	Field  string
}

func (id Identifier) String() string { return id.Module + "." + id.Field }

// Import is a decoded import-section entry.
type Import struct {
	Module string
	Field  string
	Kind   ExportKind
	// DescFunc is the signature index, valid when Kind == ExportKindFunction.
	DescFunc uint32
}

// Export is a decoded export-section entry.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// DataSegment is an active data initializer: Data is copied into memory
// starting at Addr during instantiation.
type DataSegment struct {
	Addr uint32
	Data []byte
}

// MemoryBlueprint is the decoded description of a module's memory, before
// instantiation allocates the backing bytes.
type MemoryBlueprint struct {
	MinPages   uint32
	MaxPages   uint32 // only meaningful when HasMax
	HasMax     bool
	ExportName string // empty if the memory is not exported
	Init       []DataSegment
}

// Function is a function-table entry as produced by the decoder: either an
// import stub (Body is nil, ImportID names the host function to resolve)
// or a module-defined function body.
type Function struct {
	// Signature is shared (interned) across every function that
	// references the same type-section entry.
	Signature *FunctionType

	// ExportName is set if this function is exported; empty otherwise.
	ExportName string

	// IsImport is true for the low-numbered stub entries created by the
	// import section; such entries carry no body.
	IsImport bool
	// ImportID names the host function an import resolves to. Only
	// meaningful when IsImport.
	ImportID Identifier

	// Locals and Body are populated from the code section for
	// module-defined functions; empty for imports.
	Locals []ValueType
	Body   []Instruction

	// Index is this function's position in the module's function table
	// (imports occupy the lowest indices, so Index equals wasm_base+i for
	// the i-th code-section entry).
	Index uint32
}

// Module is the decoder's output: an immutable program representation
// ready for instantiation.
type Module struct {
	Types     []*FunctionType
	Functions []*Function
	Memory    *MemoryBlueprint // nil if the module declares no memory
}

// StartFunction returns the function exported under the conventional
// "_start" name, if any.
func (m *Module) StartFunction() (*Function, bool) {
	for _, f := range m.Functions {
		if f.ExportName == "_start" {
			return f, true
		}
	}
	return nil, false
}
