package interchange_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tenorlang/tenor/source/interchange"
	"github.com/tenorlang/tenor/source/parser"
)

func serializeSource(t *testing.T, input string) map[string]any {
	t.Helper()
	constructs, e := parser.Parse("test.tenor", input)
	if e != nil {
		t.Fatalf("unexpected parse error: %s", e.Error())
	}
	out := interchange.Serialize(constructs, "test")
	var bundle map[string]any
	if jsonErr := json.Unmarshal(out, &bundle); jsonErr != nil {
		t.Fatalf("bundle is not valid JSON: %v", jsonErr)
	}
	return bundle
}

func TestBundleHeader(t *testing.T) {
	bundle := serializeSource(t, `persona Clerk`)
	if bundle["kind"] != "Bundle" || bundle["id"] != "test" {
		t.Errorf("bad header: %v", bundle)
	}
	if bundle["tenor"] != "1.0" {
		t.Errorf("bad tenor version: %v", bundle["tenor"])
	}
	if bundle["tenor_version"] != "1.1.0" {
		t.Errorf("bad bundle version: %v", bundle["tenor_version"])
	}
}

func TestConstructKindOrder(t *testing.T) {
	bundle := serializeSource(t, `flow f {
	entry: s
	steps: {
		s: HandoffStep { from_persona: A to_persona: B next: s2 }
		s2: HandoffStep { from_persona: B to_persona: A next: s3 }
		s3: HandoffStep { from_persona: A to_persona: B next: s }
	}
}
rule r_late {
	stratum: 1
	when: score >= 1
	produce: verdict Late
}
rule r_early {
	stratum: 0
	when: score >= 1
	produce: verdict Early
}
entity E {
	states: [a, b]
	initial: a
	transitions: [(a, b)]
}
fact score {
	type: Int(0, 100)
	source: "svc.score"
}
persona Clerk`)
	constructs := bundle["constructs"].([]any)
	var kinds, ids []string
	for _, c := range constructs {
		m := c.(map[string]any)
		kinds = append(kinds, m["kind"].(string))
		ids = append(ids, m["id"].(string))
	}
	expected := []string{"Persona", "Fact", "Entity", "Rule", "Rule", "Flow"}
	if len(kinds) != len(expected) {
		t.Fatalf("expected %d constructs, got %v", len(expected), kinds)
	}
	for i, k := range expected {
		if kinds[i] != k {
			t.Fatalf("bad kind order: %v", kinds)
		}
	}
	// Rules group by ascending stratum, not declaration order.
	if ids[3] != "r_early" || ids[4] != "r_late" {
		t.Errorf("bad rule order: %v", ids)
	}
}

func TestCanonicalKeySorting(t *testing.T) {
	constructs, e := parser.Parse("test.tenor", `fact score {
	type: Int(0, 100)
	source: "svc.score"
}`)
	if e != nil {
		t.Fatalf("unexpected parse error: %s", e.Error())
	}
	out := interchange.Serialize(constructs, "test")
	if !bytes.HasPrefix(out, []byte(`{"constructs":[`)) {
		t.Errorf("constructs must be the first bundle key: %.40s", out)
	}
	if !bytes.HasSuffix(out, []byte(`"tenor":"1.0","tenor_version":"1.1.0"}`)) {
		t.Errorf("bad bundle key tail: %s", out)
	}
	if !bytes.Contains(out, []byte(`{"base":"Int","max":100,"min":0}`)) {
		t.Errorf("type keys must be sorted: %s", out)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	input := `type Address {
	zip: Text(max_length: 10)
	street: Text(max_length: 100)
	city: Text(max_length: 50)
}
fact home {
	type: Address
	source: "crm.home"
}`
	constructs, e := parser.Parse("test.tenor", input)
	if e != nil {
		t.Fatalf("unexpected parse error: %s", e.Error())
	}
	first := interchange.Serialize(constructs, "test")
	for i := 0; i < 10; i++ {
		again, e := parser.Parse("test.tenor", input)
		if e != nil {
			t.Fatalf("unexpected parse error: %s", e.Error())
		}
		if next := interchange.Serialize(again, "test"); !bytes.Equal(first, next) {
			t.Fatalf("serialization is not byte-deterministic:\n%s\n%s", first, next)
		}
	}
}

func TestFreetextSourceSplit(t *testing.T) {
	bundle := serializeSource(t, `fact score {
	type: Int(0, 100)
	source: "bureau.report.score"
}`)
	fact := bundle["constructs"].([]any)[0].(map[string]any)
	src := fact["source"].(map[string]any)
	if src["system"] != "bureau" || src["field"] != "report.score" {
		t.Errorf("freetext source must split on the first dot: %v", src)
	}
}

func TestStructuredSourceShape(t *testing.T) {
	bundle := serializeSource(t, `fact score {
	type: Int(0, 100)
	source: bureau_feed { path: "report.score" }
}`)
	fact := bundle["constructs"].([]any)[0].(map[string]any)
	src := fact["source"].(map[string]any)
	if src["source_id"] != "bureau_feed" || src["path"] != "report.score" {
		t.Errorf("bad structured source: %v", src)
	}
}

func TestDecimalDefaultBankersRounding(t *testing.T) {
	bundle := serializeSource(t, `fact rate {
	type: Decimal(precision: 10, scale: 2)
	source: "svc.rate"
	default: 2.665
}`)
	fact := bundle["constructs"].([]any)[0].(map[string]any)
	def := fact["default"].(map[string]any)
	if def["kind"] != "decimal_value" || def["value"] != "2.66" {
		t.Errorf("expected round-half-to-even to 2.66, got %v", def)
	}
	if def["precision"] != float64(10) || def["scale"] != float64(2) {
		t.Errorf("bad precision/scale: %v", def)
	}
}

func TestMoneyLiteralShape(t *testing.T) {
	bundle := serializeSource(t, `fact income {
	type: Money(currency: "USD")
	source: "payroll.income"
}
rule income_ok {
	stratum: 0
	when: income >= Money { amount: "3000.00", currency: "USD" }
	produce: verdict IncomeOk
}`)
	var rule map[string]any
	for _, c := range bundle["constructs"].([]any) {
		if m := c.(map[string]any); m["kind"] == "Rule" {
			rule = m
		}
	}
	when := rule["body"].(map[string]any)["when"].(map[string]any)
	right := when["right"].(map[string]any)
	lit := right["literal"].(map[string]any)
	amount := lit["amount"].(map[string]any)
	if amount["value"] != "3000.00" || lit["currency"] != "USD" {
		t.Errorf("bad money literal: %v", lit)
	}
	ct := when["comparison_type"].(map[string]any)
	if ct["base"] != "Money" || ct["currency"] != "USD" {
		t.Errorf("money comparison should carry the money comparison type: %v", ct)
	}
}

func TestMulPayloadResultType(t *testing.T) {
	bundle := serializeSource(t, `fact units {
	type: Int(0, 10)
	source: "svc.units"
}
rule scaled {
	stratum: 0
	when: units >= 1
	produce: verdict Scaled { payload: Int(0, 30) = units * 3 }
}`)
	var rule map[string]any
	for _, c := range bundle["constructs"].([]any) {
		if m := c.(map[string]any); m["kind"] == "Rule" {
			rule = m
		}
	}
	payload := rule["body"].(map[string]any)["produce"].(map[string]any)["payload"].(map[string]any)
	value := payload["value"].(map[string]any)
	if value["op"] != "*" || value["literal"] != float64(3) {
		t.Errorf("bad mul value: %v", value)
	}
	rt := value["result_type"].(map[string]any)
	if rt["base"] != "Int" || rt["min"] != float64(0) || rt["max"] != float64(30) {
		t.Errorf("bad mul result type: %v", rt)
	}
}

func TestFlowStepsBreadthFirst(t *testing.T) {
	bundle := serializeSource(t, `flow f {
	entry: start
	steps: {
		zz_unreachable: HandoffStep { from_persona: A to_persona: B next: start }
		finish: HandoffStep { from_persona: B to_persona: A next: start }
		start: BranchStep {
			condition: verdict_present(V)
			persona: A
			if_true: finish
			if_false: Terminal(rejected)
		}
	}
}`)
	flow := bundle["constructs"].([]any)[0].(map[string]any)
	steps := flow["steps"].([]any)
	var order []string
	for _, s := range steps {
		order = append(order, s.(map[string]any)["id"].(string))
	}
	want := []string{"start", "finish", "zz_unreachable"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected BFS order from entry with unreachable steps last, got %v", order)
	}
}

func TestEnumComparisonAnnotation(t *testing.T) {
	bundle := serializeSource(t, `fact status {
	type: Enum(values: ["open", "closed"])
	source: "svc.status"
}
rule is_open {
	stratum: 0
	when: status = "open"
	produce: verdict Open
}`)
	var rule map[string]any
	for _, c := range bundle["constructs"].([]any) {
		if m := c.(map[string]any); m["kind"] == "Rule" {
			rule = m
		}
	}
	when := rule["body"].(map[string]any)["when"].(map[string]any)
	right := when["right"].(map[string]any)
	rt, ok := right["type"].(map[string]any)
	if !ok || rt["base"] != "Enum" {
		t.Errorf("enum comparison should annotate the literal with the enum type: %v", right)
	}
	if right["literal"] != "open" {
		t.Errorf("bad literal: %v", right)
	}
}

func TestSystemCanonicalOrdering(t *testing.T) {
	bundle := serializeSource(t, `system Lending {
	members: [servicing: "servicing.tenor", origination: "origination.tenor"]
	shared_personas: [{ persona: Underwriter, contracts: [servicing, origination] }]
	triggers: [{
		source: servicing.board
		on: success
		target: origination.underwrite
		persona: Underwriter
	}, {
		source: origination.underwrite
		on: success
		target: servicing.board
		persona: Underwriter
	}]
}`)
	sys := bundle["constructs"].([]any)[0].(map[string]any)
	members := sys["members"].([]any)
	if members[0].(map[string]any)["id"] != "origination" {
		t.Errorf("members must sort by id: %v", members)
	}
	personas := sys["shared_personas"].([]any)
	contracts := personas[0].(map[string]any)["contracts"].([]any)
	if contracts[0] != "origination" || contracts[1] != "servicing" {
		t.Errorf("shared persona contracts must sort: %v", contracts)
	}
	triggers := sys["triggers"].([]any)
	if triggers[0].(map[string]any)["source_contract"] != "origination" {
		t.Errorf("triggers must sort by source: %v", triggers)
	}
}

func TestEmptyBundle(t *testing.T) {
	out := interchange.Serialize(nil, "empty")
	var bundle map[string]any
	if jsonErr := json.Unmarshal(out, &bundle); jsonErr != nil {
		t.Fatalf("bundle is not valid JSON: %v", jsonErr)
	}
	constructs, ok := bundle["constructs"].([]any)
	if !ok || len(constructs) != 0 {
		t.Errorf("constructs must serialize as an empty array: %v", bundle["constructs"])
	}
}
