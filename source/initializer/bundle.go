package initializer

import (
	"path/filepath"
	"strings"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/parser"
	"github.com/tenorlang/tenor/source/set"
	"github.com/tenorlang/tenor/source/text"
)

// LoadBundle parses the root .tenor file and all transitive imports into a
// flat construct list, returning it with the bundle id (the root file stem).
func LoadBundle(root string) ([]ast.RawConstruct, string, *err.Error) {
	return LoadBundleWithProvider(root, FileSystemProvider{})
}

type bundleLoader struct {
	provider    SourceProvider
	sandboxRoot string
	visited     set.Set[string]
	stack       []string
	stackSet    set.Set[string]
	out         []ast.RawConstruct
}

func LoadBundleWithProvider(root string, provider SourceProvider) ([]ast.RawConstruct, string, *err.Error) {
	canonRoot, e := provider.Canonicalize(root)
	if e != nil {
		return nil, "", err.CreateErr("bundle/open", 1, root, 0, e)
	}
	rootDir := filepath.Dir(canonRoot)
	bundleId := text.ExtractFileName(canonRoot)

	// The sandbox boundary: every imported file must resolve inside the
	// directory containing the root file.
	sandboxRoot, e := provider.Canonicalize(rootDir)
	if e != nil {
		return nil, "", err.CreateErr("bundle/root", 1, canonRoot, 0, e)
	}

	loader := &bundleLoader{
		provider:    provider,
		sandboxRoot: sandboxRoot,
		visited:     set.Set[string]{},
		stackSet:    set.Set[string]{},
	}
	if elabErr := loader.loadFile(canonRoot, rootDir); elabErr != nil {
		return nil, "", elabErr
	}
	if elabErr := checkCrossFileDups(loader.out); elabErr != nil {
		return nil, "", elabErr
	}
	return loader.out, bundleId, nil
}

// Constructs with the same (kind, id) coming from different files make the
// bundle ambiguous. Checked in reverse so that the reported "first" file is
// the one closest to the root of the import graph.
func checkCrossFileDups(constructs []ast.RawConstruct) *err.Error {
	type key struct{ kind, id string }
	seen := map[key]ast.Provenance{}
	for i := len(constructs) - 1; i >= 0; i-- {
		c := constructs[i]
		if _, isImport := c.(ast.Import); isImport {
			continue
		}
		kind := ast.KindOf(c)
		id := c.GetId()
		prov := c.GetProv()
		if first, ok := seen[key{kind, id}]; ok {
			if first.File != prov.File {
				return err.CreateErr("bundle/dup", 1, prov.File, prov.Line, kind, id, first.File).
					On(kind, id).At("id")
			}
		} else {
			seen[key{kind, id}] = prov
		}
	}
	return nil
}

func (l *bundleLoader) loadFile(path, baseDir string) *err.Error {
	canon, e := l.provider.Canonicalize(path)
	if e != nil {
		return err.CreateErr("bundle/resolve/c", 1, path, 0, path, e)
	}

	if l.stackSet.Contains(canon) {
		return err.CreateErr("bundle/cycle", 1, path, 0, l.cycleChain(filepath.Base(path)))
	}
	if l.visited.Contains(canon) {
		return nil
	}

	src, e := l.provider.ReadSource(path)
	if e != nil {
		return err.CreateErr("bundle/read", 1, path, 0, path, e)
	}

	filename := filepath.Base(path)
	constructs, parseErr := parser.Parse(filename, src)
	if parseErr != nil {
		return parseErr
	}

	if typelibErr := checkTypeLibrary(filename, constructs); typelibErr != nil {
		return typelibErr
	}

	l.stackSet.Add(canon)
	l.stack = append(l.stack, canon)

	var local []ast.RawConstruct
	for _, c := range constructs {
		imp, isImport := c.(ast.Import)
		if !isImport {
			local = append(local, c)
			continue
		}

		resolved, e := l.provider.ResolveImport(baseDir, imp.Path)
		if e != nil {
			return err.CreateErr("bundle/resolve/a", 1, imp.Prov.File, imp.Prov.Line, imp.Path, e).
				At("import")
		}

		// Fail closed: the import must canonicalize, and the canonical
		// path must stay inside the sandbox root.
		canonImport, e := l.provider.Canonicalize(resolved)
		if e != nil {
			return err.CreateErr("bundle/resolve/b", 1, imp.Prov.File, imp.Prov.Line, imp.Path).
				At("import")
		}
		if !underSandbox(canonImport, l.sandboxRoot) {
			return err.CreateErr("bundle/escape", 1, imp.Prov.File, imp.Prov.Line, imp.Path).
				At("import")
		}

		if l.stackSet.Contains(canonImport) {
			return err.CreateErr("bundle/cycle", 1, imp.Prov.File, imp.Prov.Line,
				l.cycleChain(filepath.Base(resolved))).At("import")
		}

		importBase := filepath.Dir(canonImport)
		if loadErr := l.loadFile(resolved, importBase); loadErr != nil {
			return loadErr
		}
	}
	l.out = append(l.out, local...)

	l.stack = l.stack[:len(l.stack)-1]
	l.stackSet.Remove(canon)
	l.visited.Add(canon)
	return nil
}

// A bare prefix test would let "/contract2" pass for a sandbox rooted at
// "/contract", so the boundary must fall on a path separator.
func underSandbox(canonPath, sandboxRoot string) bool {
	if canonPath == sandboxRoot {
		return true
	}
	if !strings.HasSuffix(sandboxRoot, string(filepath.Separator)) {
		sandboxRoot += string(filepath.Separator)
	}
	return strings.HasPrefix(canonPath, sandboxRoot)
}

func (l *bundleLoader) cycleChain(target string) string {
	chain := make([]string, 0, len(l.stack)+1)
	for _, p := range l.stack {
		chain = append(chain, filepath.Base(p))
	}
	chain = append(chain, target)
	return strings.Join(chain, " → ")
}

// A file consisting only of type declarations is a type library, and type
// libraries are leaves of the import graph.
func checkTypeLibrary(filename string, constructs []ast.RawConstruct) *err.Error {
	hasImport := false
	hasTypeDecl := false
	var importProv ast.Provenance
	for _, c := range constructs {
		switch c := c.(type) {
		case ast.Import:
			if !hasImport {
				importProv = c.Prov
			}
			hasImport = true
		case ast.TypeDecl:
			hasTypeDecl = true
		default:
			return nil
		}
	}
	if hasImport && hasTypeDecl {
		return err.CreateErr("bundle/typelib", 1, importProv.File, importProv.Line, filename).
			At("import")
	}
	return nil
}
