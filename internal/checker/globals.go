package checker

// globalTypes are names the TypeScript standard library declares. They
// resolve to external symbols from the "typescript" package.
var globalTypes = map[string]bool{
	"Array":                 true,
	"ArrayLike":             true,
	"ReadonlyArray":         true,
	"Awaited":               true,
	"BigInt":                true,
	"Boolean":               true,
	"Capitalize":            true,
	"ConstructorParameters": true,
	"Date":                  true,
	"Error":                 true,
	"Exclude":               true,
	"Extract":               true,
	"Function":              true,
	"InstanceType":          true,
	"Iterable":              true,
	"IterableIterator":      true,
	"Iterator":              true,
	"AsyncIterable":         true,
	"Lowercase":             true,
	"Map":                   true,
	"NonNullable":           true,
	"Number":                true,
	"Object":                true,
	"Omit":                  true,
	"Parameters":            true,
	"Partial":               true,
	"Pick":                  true,
	"Promise":               true,
	"PromiseLike":           true,
	"PropertyKey":           true,
	"Readonly":              true,
	"ReadonlyMap":           true,
	"ReadonlySet":           true,
	"Record":                true,
	"RegExp":                true,
	"Required":              true,
	"ReturnType":            true,
	"Set":                   true,
	"String":                true,
	"Symbol":                true,
	"ThisType":              true,
	"Uint8Array":            true,
	"Uncapitalize":          true,
	"Uppercase":             true,
	"WeakMap":               true,
	"WeakSet":               true,
}
