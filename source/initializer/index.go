package initializer

import (
	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
)

// VerdictOrigin records which rule produces a verdict type and at what stratum.
type VerdictOrigin struct {
	RuleId  string
	Stratum int64
}

// Index is the (kind, id) lookup built over the bundle's constructs.
// Duplicate ids within a kind are rejected while building it.
type Index struct {
	Facts      map[string]ast.Provenance
	Entities   map[string]ast.Provenance
	Rules      map[string]ast.Provenance
	Operations map[string]ast.Provenance
	Flows      map[string]ast.Provenance
	TypeDecls  map[string]ast.Provenance
	Personas   map[string]ast.Provenance
	Systems    map[string]ast.Provenance
	Sources    map[string]ast.Provenance

	// rule id -> verdict type it produces
	RuleVerdicts map[string]string
	// verdict type -> producing rule and its stratum
	VerdictStrata map[string]VerdictOrigin
	// operation id -> declared outcomes (empty slice = implicit success)
	OperationOutcomes map[string][]string
	// operation id -> allowed_personas
	OperationPersonas map[string][]string
}

func BuildIndex(constructs []ast.RawConstruct) (*Index, *err.Error) {
	idx := &Index{
		Facts:             map[string]ast.Provenance{},
		Entities:          map[string]ast.Provenance{},
		Rules:             map[string]ast.Provenance{},
		Operations:        map[string]ast.Provenance{},
		Flows:             map[string]ast.Provenance{},
		TypeDecls:         map[string]ast.Provenance{},
		Personas:          map[string]ast.Provenance{},
		Systems:           map[string]ast.Provenance{},
		Sources:           map[string]ast.Provenance{},
		RuleVerdicts:      map[string]string{},
		VerdictStrata:     map[string]VerdictOrigin{},
		OperationOutcomes: map[string][]string{},
		OperationPersonas: map[string][]string{},
	}

	for _, c := range constructs {
		var byKind map[string]ast.Provenance
		switch c.(type) {
		case ast.Import:
			continue
		case ast.Fact:
			byKind = idx.Facts
		case ast.Entity:
			byKind = idx.Entities
		case ast.Rule:
			byKind = idx.Rules
		case ast.Operation:
			byKind = idx.Operations
		case ast.Flow:
			byKind = idx.Flows
		case ast.TypeDecl:
			byKind = idx.TypeDecls
		case ast.Persona:
			byKind = idx.Personas
		case ast.System:
			byKind = idx.Systems
		case ast.Source:
			byKind = idx.Sources
		}
		kind := ast.KindOf(c)
		id := c.GetId()
		prov := c.GetProv()
		if first, dup := byKind[id]; dup {
			return nil, err.CreateErr("index/dup", 2, prov.File, prov.Line, kind, id, first.Line).
				On(kind, id).At("id")
		}
		byKind[id] = prov

		switch c := c.(type) {
		case ast.Rule:
			idx.RuleVerdicts[c.Id] = c.VerdictType
			idx.VerdictStrata[c.VerdictType] = VerdictOrigin{RuleId: c.Id, Stratum: c.Stratum}
		case ast.Operation:
			idx.OperationOutcomes[c.Id] = c.Outcomes
			idx.OperationPersonas[c.Id] = c.AllowedPersonas
		}
	}

	return idx, nil
}
