// Package initializer turns a root contract file into a canonical interchange
// bundle. It is a thin orchestrator over the elaboration passes: bundle
// assembly, construct indexing, type environment, type resolution and
// checking, structural validation, serialization.
package initializer

import (
	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/interchange"
	"github.com/tenorlang/tenor/source/parser"
	"github.com/tenorlang/tenor/source/settings"
	"github.com/tenorlang/tenor/source/text"
)

// Elaborate reads the root file and everything it imports from the local
// filesystem and returns the interchange bundle as canonical JSON, or the
// first elaboration error encountered.
func Elaborate(rootPath string) ([]byte, *err.Error) {
	return ElaborateWithProvider(rootPath, FileSystemProvider{})
}

// ElaborateWithProvider runs the same pipeline with all file I/O going
// through the given provider, so contracts can be elaborated without
// touching the filesystem.
func ElaborateWithProvider(rootPath string, provider SourceProvider) ([]byte, *err.Error) {
	constructs, bundleId, e := LoadBundleWithProvider(rootPath, provider)
	if e != nil {
		return nil, e
	}

	idx, e := BuildIndex(constructs)
	if e != nil {
		return nil, e
	}

	typeEnv, e := BuildTypeEnv(constructs, idx)
	if e != nil {
		return nil, e
	}

	constructs, e = ResolveTypes(constructs, typeEnv)
	if e != nil {
		return nil, e
	}

	if e := TypeCheckRules(constructs); e != nil {
		return nil, e
	}

	if e := Validate(constructs, idx); e != nil {
		return nil, e
	}
	if e := ValidateOperationTransitions(constructs, idx); e != nil {
		return nil, e
	}

	return interchange.Serialize(constructs, bundleId), nil
}

// ElaborateSourceRecovering elaborates a single source text, collecting up
// to settings.MAX_PARSE_ERRORS parse errors before giving up on the file.
// Passes after the parse stop at the first error, as Elaborate does. The
// hub and the HTTP API use this so a draft contract reports all its syntax
// errors in one round trip.
func ElaborateSourceRecovering(filename, source string) ([]byte, err.Errors) {
	constructs, errors, lexErr := parser.ParseRecovering(filename, source, settings.MAX_PARSE_ERRORS)
	if lexErr != nil {
		return nil, err.Errors{lexErr}
	}
	if len(errors) > 0 {
		return nil, errors
	}
	checked, e := ElaborateConstructs(constructs)
	if e != nil {
		return nil, err.Errors{e}
	}
	return interchange.Serialize(checked, text.ExtractFileName(filename)), nil
}

// ElaborateConstructs runs passes 2 through 5 on an already-assembled
// construct list and returns the checked constructs. Useful for callers that
// assemble bundles themselves.
func ElaborateConstructs(constructs []ast.RawConstruct) ([]ast.RawConstruct, *err.Error) {
	idx, e := BuildIndex(constructs)
	if e != nil {
		return nil, e
	}
	typeEnv, e := BuildTypeEnv(constructs, idx)
	if e != nil {
		return nil, e
	}
	constructs, e = ResolveTypes(constructs, typeEnv)
	if e != nil {
		return nil, e
	}
	if e := TypeCheckRules(constructs); e != nil {
		return nil, e
	}
	if e := Validate(constructs, idx); e != nil {
		return nil, e
	}
	if e := ValidateOperationTransitions(constructs, idx); e != nil {
		return nil, e
	}
	return constructs, nil
}
