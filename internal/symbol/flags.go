package symbol

// Flags is the checker's symbol flag bitset. Bit values follow the
// TypeScript compiler's SymbolFlags enumeration.
type Flags uint32

const (
	FlagFunctionScopedVariable Flags = 1 << iota
	FlagBlockScopedVariable
	FlagProperty
	FlagEnumMember
	FlagFunction
	FlagClass
	FlagInterface
	FlagConstEnum
	FlagRegularEnum
	FlagValueModule
	FlagNamespaceModule
	FlagTypeLiteral
	FlagObjectLiteral
	FlagMethod
	FlagConstructor
	FlagGetAccessor
	FlagSetAccessor
	FlagSignature
	FlagTypeParameter
	FlagTypeAlias
	FlagExportValue
	FlagAlias
	FlagPrototype
	FlagExportStar
	FlagOptional
	FlagTransient
	FlagAssignment
	FlagModuleExports
)

// Composite flags.
const (
	FlagEnum     = FlagRegularEnum | FlagConstEnum
	FlagVariable = FlagFunctionScopedVariable | FlagBlockScopedVariable
	FlagModule   = FlagValueModule | FlagNamespaceModule
	FlagAccessor = FlagGetAccessor | FlagSetAccessor
	FlagType     = FlagClass | FlagInterface | FlagEnum | FlagEnumMember | FlagTypeLiteral | FlagTypeParameter | FlagTypeAlias
)

// flagTag pairs a tag name with the bits that must all be set for the tag
// to apply.
type flagTag struct {
	Tag  string
	Bits Flags
}

// flagTable is the fixed reverse lookup used by Tags. Order is output order.
var flagTable = []flagTag{
	{"FunctionScopedVariable", FlagFunctionScopedVariable},
	{"BlockScopedVariable", FlagBlockScopedVariable},
	{"Property", FlagProperty},
	{"EnumMember", FlagEnumMember},
	{"Function", FlagFunction},
	{"Class", FlagClass},
	{"Interface", FlagInterface},
	{"ConstEnum", FlagConstEnum},
	{"RegularEnum", FlagRegularEnum},
	{"ValueModule", FlagValueModule},
	{"NamespaceModule", FlagNamespaceModule},
	{"TypeLiteral", FlagTypeLiteral},
	{"ObjectLiteral", FlagObjectLiteral},
	{"Method", FlagMethod},
	{"Constructor", FlagConstructor},
	{"GetAccessor", FlagGetAccessor},
	{"SetAccessor", FlagSetAccessor},
	{"Signature", FlagSignature},
	{"TypeParameter", FlagTypeParameter},
	{"TypeAlias", FlagTypeAlias},
	{"ExportValue", FlagExportValue},
	{"Alias", FlagAlias},
	{"Prototype", FlagPrototype},
	{"ExportStar", FlagExportStar},
	{"Optional", FlagOptional},
	{"Transient", FlagTransient},
	{"Assignment", FlagAssignment},
	{"ModuleExports", FlagModuleExports},
	{"Enum", FlagEnum},
	{"Variable", FlagVariable},
	{"Module", FlagModule},
	{"Accessor", FlagAccessor},
}

// Has reports whether every bit of want is set.
func (f Flags) Has(want Flags) bool {
	return want != 0 && f&want == want
}

// Any reports whether at least one bit of want is set.
func (f Flags) Any(want Flags) bool {
	return f&want != 0
}

// Tags returns the names of every table entry whose bits are all set.
func (f Flags) Tags() []string {
	var tags []string
	for _, t := range flagTable {
		if f.Has(t.Bits) {
			tags = append(tags, t.Tag)
		}
	}
	return tags
}
