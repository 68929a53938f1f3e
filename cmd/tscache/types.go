package main

import "github.com/jward/tscache"

// CLIResult is the top-level envelope for json and yaml output.
type CLIResult struct {
	Command string `json:"command" yaml:"command"`
	Results any    `json:"results" yaml:"results"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLISymbol is the flattened symbol row printed by symbols and graph.
type CLISymbol struct {
	FQN        string   `json:"fqn" yaml:"fqn"`
	Name       string   `json:"name" yaml:"name"`
	Kind       string   `json:"kind" yaml:"kind"`
	Scope      string   `json:"scope" yaml:"scope"`
	File       string   `json:"file,omitempty" yaml:"file,omitempty"`
	StartLine  int      `json:"start_line" yaml:"start_line"`
	EndLine    int      `json:"end_line" yaml:"end_line"`
	Deps       []string `json:"deps,omitempty" yaml:"deps,omitempty"`
	Depth      *int     `json:"depth,omitempty" yaml:"depth,omitempty"`
	RequiredBy string   `json:"required_by,omitempty" yaml:"required_by,omitempty"`
}

func toCLISymbol(rec *tscache.SymbolRecord) CLISymbol {
	return CLISymbol{
		FQN:       rec.FQN,
		Name:      rec.Name,
		Kind:      string(rec.Kind),
		Scope:     string(rec.Scope),
		File:      rec.Filepath,
		StartLine: rec.StartLine,
		EndLine:   rec.EndLine,
		Deps:      rec.Deps,
	}
}

func toCLIGraph(nodes []tscache.GraphNode) []CLISymbol {
	out := make([]CLISymbol, len(nodes))
	for i, n := range nodes {
		s := toCLISymbol(n.Symbol)
		depth := n.Depth
		s.Depth = &depth
		s.RequiredBy = n.RequiredBy
		out[i] = s
	}
	return out
}

// CLIDiagnostics is the result of the diagnostics command.
type CLIDiagnostics struct {
	Report *tscache.DiagnosticsReport `json:"report" yaml:"report"`
	// Files is set when filtering by --code.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}
