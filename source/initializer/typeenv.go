package initializer

import (
	"strings"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/digraph"
	"github.com/tenorlang/tenor/source/err"
)

// TypeEnv maps a TypeDecl name to its fully resolved record type. The
// environment is consumed by pass 4 and never reaches the bundle: named
// types are inlined into the constructs that use them.
type TypeEnv map[string]ast.RawType

type typeDecl struct {
	fields map[string]ast.RawType
	prov   ast.Provenance
}

func BuildTypeEnv(constructs []ast.RawConstruct, _ *Index) (TypeEnv, *err.Error) {
	decls := map[string]typeDecl{}
	for _, c := range constructs {
		if td, ok := c.(ast.TypeDecl); ok {
			decls[td.Id] = typeDecl{fields: td.Fields, prov: td.Prov}
		}
	}

	// The dependency digraph of the declarations. References to types
	// that are not declared are left out: pass 4 reports those.
	D := digraph.Digraph[string]{}
	for _, name := range ast.SortedKeys(decls) {
		refs := []string{}
		for _, f := range ast.SortedKeys(decls[name].fields) {
			for _, r := range typeRefs(decls[name].fields[f]) {
				if _, ok := decls[r]; ok {
					refs = append(refs, r)
				}
			}
		}
		D.Add(name, refs)
	}
	order, cycle := digraph.Ordering(D)
	if len(cycle) > 0 {
		return nil, typeDeclCycleError(cycle, decls)
	}

	// The ordering puts dependencies first, so each declaration resolves
	// against an environment that already holds everything it refers to.
	env := TypeEnv{}
	for _, name := range order {
		t, e := resolveTypeDecl(name, decls, env)
		if e != nil {
			return nil, e
		}
		env[name] = t
	}
	return env, nil
}

func typeDeclCycleError(cycle []string, decls map[string]typeDecl) *err.Error {
	next := cycle[0]
	if len(cycle) > 1 {
		next = cycle[1]
	}
	decl := decls[cycle[0]]
	fieldName := "type"
	for _, f := range ast.SortedKeys(decl.fields) {
		if referencesType(decl.fields[f], next) {
			fieldName = f
			break
		}
	}
	display := strings.Join(append(append([]string{}, cycle...), cycle[0]), " → ")
	return err.CreateErr("types/cycle", 3, decl.prov.File, decl.prov.Line, display).
		On("TypeDecl", cycle[0]).At("type.fields." + fieldName)
}

func referencesType(t ast.RawType, target string) bool {
	switch t := t.(type) {
	case ast.TypeRef:
		return t.Name == target
	case ast.RecordType:
		for _, ft := range t.Fields {
			if referencesType(ft, target) {
				return true
			}
		}
	case ast.ListType:
		return referencesType(t.ElementType, target)
	}
	return false
}

func typeRefs(t ast.RawType) []string {
	switch t := t.(type) {
	case ast.TypeRef:
		return []string{t.Name}
	case ast.RecordType:
		var refs []string
		for _, f := range ast.SortedKeys(t.Fields) {
			refs = append(refs, typeRefs(t.Fields[f])...)
		}
		return refs
	case ast.ListType:
		return typeRefs(t.ElementType)
	}
	return nil
}

func resolveTypeDecl(name string, decls map[string]typeDecl, env TypeEnv) (ast.RawType, *err.Error) {
	decl := decls[name]
	resolved := map[string]ast.RawType{}
	for _, fname := range ast.SortedKeys(decl.fields) {
		rt, e := resolveTypeInEnv(decl.fields[fname], decls, env, decl.prov.File, decl.prov.Line)
		if e != nil {
			return nil, e
		}
		resolved[fname] = rt
	}
	return ast.RecordType{Fields: resolved}, nil
}

func resolveTypeInEnv(t ast.RawType, decls map[string]typeDecl, env TypeEnv, file string, line int) (ast.RawType, *err.Error) {
	switch t := t.(type) {
	case ast.TypeRef:
		if resolved, ok := env[t.Name]; ok {
			return resolved, nil
		}
		if _, ok := decls[t.Name]; ok {
			return resolveTypeDecl(t.Name, decls, env)
		}
		return nil, err.CreateErr("check/type/unknown/a", 4, file, line, t.Name).At("type")
	case ast.RecordType:
		resolved := map[string]ast.RawType{}
		for _, k := range ast.SortedKeys(t.Fields) {
			rt, e := resolveTypeInEnv(t.Fields[k], decls, env, file, line)
			if e != nil {
				return nil, e
			}
			resolved[k] = rt
		}
		return ast.RecordType{Fields: resolved}, nil
	case ast.ListType:
		et, e := resolveTypeInEnv(t.ElementType, decls, env, file, line)
		if e != nil {
			return nil, e
		}
		return ast.ListType{ElementType: et, Max: t.Max}, nil
	}
	return t, nil
}
