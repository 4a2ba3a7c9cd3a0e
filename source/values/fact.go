package values

// A FactDecl is a declared fact with its type and optional default.
type FactDecl struct {
	Id      string
	Type    TypeSpec
	Default *Value
}

// A FactSet holds fact values keyed by fact id.
type FactSet struct {
	facts map[string]Value
}

func NewFactSet() *FactSet {
	return &FactSet{facts: make(map[string]Value)}
}

func (fs *FactSet) Get(id string) (Value, bool) {
	v, ok := fs.facts[id]
	return v, ok
}

func (fs *FactSet) Insert(id string, value Value) {
	fs.facts[id] = value
}

func (fs *FactSet) Len() int {
	return len(fs.facts)
}

// Ids returns the fact ids in ascending order.
func (fs *FactSet) Ids() []string {
	return SortedKeys(fs.facts)
}

// VerdictProvenance records which rule produced a verdict, at what
// stratum, and which facts and verdicts its predicate touched.
type VerdictProvenance struct {
	RuleId       string
	Stratum      int
	FactsUsed    []string
	VerdictsUsed []string
}

// A ProvenanceCollector accumulates fact and verdict references during
// predicate evaluation. References are recorded once, in first-use order.
type ProvenanceCollector struct {
	FactsUsed    []string
	VerdictsUsed []string
}

func (pc *ProvenanceCollector) RecordFact(factId string) {
	for _, f := range pc.FactsUsed {
		if f == factId {
			return
		}
	}
	pc.FactsUsed = append(pc.FactsUsed, factId)
}

func (pc *ProvenanceCollector) RecordVerdict(verdictType string) {
	for _, v := range pc.VerdictsUsed {
		if v == verdictType {
			return
		}
	}
	pc.VerdictsUsed = append(pc.VerdictsUsed, verdictType)
}

func (pc *ProvenanceCollector) IntoProvenance(ruleId string, stratum int) VerdictProvenance {
	return VerdictProvenance{
		RuleId:       ruleId,
		Stratum:      stratum,
		FactsUsed:    pc.FactsUsed,
		VerdictsUsed: pc.VerdictsUsed,
	}
}

// A VerdictInstance is one produced verdict with its provenance.
type VerdictInstance struct {
	VerdictType string
	Payload     Value
	Provenance  VerdictProvenance
}

// A VerdictSet holds produced verdicts in production order.
type VerdictSet struct {
	verdicts []VerdictInstance
}

func NewVerdictSet() *VerdictSet {
	return &VerdictSet{}
}

func (vs *VerdictSet) Push(v VerdictInstance) {
	vs.verdicts = append(vs.verdicts, v)
}

func (vs *VerdictSet) All() []VerdictInstance {
	return vs.verdicts
}

func (vs *VerdictSet) HasVerdict(verdictType string) bool {
	for _, v := range vs.verdicts {
		if v.VerdictType == verdictType {
			return true
		}
	}
	return false
}

// GetVerdict returns the most recently produced verdict of the given type.
func (vs *VerdictSet) GetVerdict(verdictType string) (VerdictInstance, bool) {
	for i := len(vs.verdicts) - 1; i >= 0; i-- {
		if vs.verdicts[i].VerdictType == verdictType {
			return vs.verdicts[i], true
		}
	}
	return VerdictInstance{}, false
}

// ToJSON renders the verdict set in the output format.
func (vs *VerdictSet) ToJSON() map[string]any {
	verdicts := make([]any, 0, len(vs.verdicts))
	for _, v := range vs.verdicts {
		factsUsed := v.Provenance.FactsUsed
		if factsUsed == nil {
			factsUsed = []string{}
		}
		verdictsUsed := v.Provenance.VerdictsUsed
		if verdictsUsed == nil {
			verdictsUsed = []string{}
		}
		verdicts = append(verdicts, map[string]any{
			"type":    v.VerdictType,
			"payload": v.Payload.ToJSON(),
			"provenance": map[string]any{
				"rule":          v.Provenance.RuleId,
				"stratum":       v.Provenance.Stratum,
				"facts_used":    factsUsed,
				"verdicts_used": verdictsUsed,
			},
		})
	}
	return map[string]any{"verdicts": verdicts}
}
