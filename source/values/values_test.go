package values

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func fromJSON(t *testing.T, s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("bad test JSON: %v", err)
	}
	return v
}

func TestTypeNames(t *testing.T) {
	for _, test := range []struct {
		v    Value
		want string
	}{
		{TRUE, "Bool"},
		{MakeInt(3), "Int"},
		{MakeDecimal(decimal.New(1, 0)), "Decimal"},
		{MakeText("x"), "Text"},
		{MakeMoney(decimal.New(1, 0), "USD"), "Money"},
		{MakeDuration(30, "seconds"), "Duration"},
		{MakeEnum("open"), "Enum"},
		{MakeRecord(map[string]Value{}), "Record"},
		{MakeList(nil), "List"},
		{MakeTagged("ok", TRUE), "TaggedUnion"},
	} {
		if got := test.v.TypeName(); got != test.want {
			t.Fatalf("wanted %s, got %s", test.want, got)
		}
	}
}

func TestAsBool(t *testing.T) {
	b, err := TRUE.AsBool()
	if err != nil || !b {
		t.Fatalf("TRUE.AsBool() = %v, %v", b, err)
	}
	_, err = MakeInt(1).AsBool()
	if err == nil {
		t.Fatal("wanted type error")
	}
	if err.Message != "type error: expected Bool, got Int" {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestParseDefaultValueKindTagged(t *testing.T) {
	v, err := ParseDefaultValue(fromJSON(t, `{"kind":"bool_literal","value":true}`), BaseSpec("Bool"))
	if err != nil || !v.Equal(TRUE) {
		t.Fatalf("bool_literal: %v, %v", v, err)
	}
	v, err = ParseDefaultValue(fromJSON(t, `{"kind":"int_literal","value":30}`), BaseSpec("Int"))
	if err != nil || v.V.(int64) != 30 {
		t.Fatalf("int_literal: %v, %v", v, err)
	}
	v, err = ParseDefaultValue(fromJSON(t, `{"kind":"decimal_value","precision":10,"scale":2,"value":"2.66"}`), BaseSpec("Decimal"))
	if err != nil || !v.V.(decimal.Decimal).Equal(dec(t, "2.66")) {
		t.Fatalf("decimal_value: %v, %v", v, err)
	}
	v, err = ParseDefaultValue(fromJSON(t,
		`{"kind":"money_value","currency":"USD","amount":{"kind":"decimal_value","precision":10,"scale":2,"value":"3000.00"}}`),
		BaseSpec("Money"))
	if err != nil {
		t.Fatal(err)
	}
	m := v.V.(Money)
	if m.Currency != "USD" || !m.Amount.Equal(dec(t, "3000.00")) {
		t.Fatalf("money_value: %+v", m)
	}
}

func TestParsePlainMoneyFormats(t *testing.T) {
	spec := TypeSpec{Base: "Money", Currency: "EUR"}
	// Fact input format with a plain amount string.
	v, err := ParsePlainValue(fromJSON(t, `{"amount":"8500.00","currency":"USD"}`), spec)
	if err != nil {
		t.Fatal(err)
	}
	if v.V.(Money).Currency != "USD" {
		t.Fatalf("explicit currency lost: %+v", v.V)
	}
	// Currency falls back to the type when the input omits it.
	v, err = ParsePlainValue(fromJSON(t, `{"amount":"10.00"}`), spec)
	if err != nil {
		t.Fatal(err)
	}
	if v.V.(Money).Currency != "EUR" {
		t.Fatalf("currency fallback failed: %+v", v.V)
	}
}

func TestParsePlainDecimalFormats(t *testing.T) {
	spec := BaseSpec("Decimal")
	v, err := ParsePlainValue(fromJSON(t, `"200.75"`), spec)
	if err != nil || !v.V.(decimal.Decimal).Equal(dec(t, "200.75")) {
		t.Fatalf("plain string: %v, %v", v, err)
	}
	v, err = ParsePlainValue(fromJSON(t, `{"kind":"decimal_value","value":"200.75"}`), spec)
	if err != nil || !v.V.(decimal.Decimal).Equal(dec(t, "200.75")) {
		t.Fatalf("structured: %v, %v", v, err)
	}
	_, err = ParsePlainValue(fromJSON(t, `200.75`), spec)
	if err == nil {
		t.Fatal("bare JSON number should be rejected for Decimal")
	}
}

func TestParsePlainRecord(t *testing.T) {
	spec := TypeSpec{Base: "Record", Fields: map[string]TypeSpec{
		"street": BaseSpec("Text"),
		"zip":    BaseSpec("Text"),
	}}
	v, err := ParsePlainValue(fromJSON(t, `{"street":"Main St","zip":"02139"}`), spec)
	if err != nil {
		t.Fatal(err)
	}
	fields := v.V.(map[string]Value)
	if fields["street"].V.(string) != "Main St" {
		t.Fatalf("bad record: %+v", fields)
	}
	_, err = ParsePlainValue(fromJSON(t, `{"street":"Main St"}`), spec)
	if err == nil {
		t.Fatal("missing field should be rejected")
	}
	if !strings.Contains(err.Message, "Record missing field 'zip'") {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestParsePlainList(t *testing.T) {
	elem := BaseSpec("Int")
	spec := TypeSpec{Base: "List", ElementType: &elem}
	v, err := ParsePlainValue(fromJSON(t, `[1,2,3]`), spec)
	if err != nil {
		t.Fatal(err)
	}
	elements := v.V.([]Value)
	if len(elements) != 3 || elements[2].V.(int64) != 3 {
		t.Fatalf("bad list: %+v", elements)
	}
}

func TestParsePlainTaggedUnion(t *testing.T) {
	spec := TypeSpec{Base: "TaggedUnion", Variants: map[string]TypeSpec{
		"approved": BaseSpec("Bool"),
		"rejected": BaseSpec("Text"),
	}}
	v, err := ParsePlainValue(fromJSON(t, `{"tag":"rejected","payload":"too risky"}`), spec)
	if err != nil {
		t.Fatal(err)
	}
	tu := v.V.(Tagged)
	if tu.Tag != "rejected" || tu.Payload.V.(string) != "too risky" {
		t.Fatalf("bad tagged union: %+v", tu)
	}
	_, err = ParsePlainValue(fromJSON(t, `{"tag":"withdrawn","payload":true}`), spec)
	if err == nil {
		t.Fatal("unknown variant should be rejected")
	}
}

func TestParseDuration(t *testing.T) {
	spec := TypeSpec{Base: "Duration", Unit: "days"}
	v, err := ParsePlainValue(fromJSON(t, `{"value":30}`), spec)
	if err != nil {
		t.Fatal(err)
	}
	d := v.V.(Duration)
	if d.Value != 30 || d.Unit != "days" {
		t.Fatalf("unit fallback failed: %+v", d)
	}
	v, err = ParsePlainValue(fromJSON(t, `{"value":1,"unit":"hours"}`), spec)
	if err != nil {
		t.Fatal(err)
	}
	if v.V.(Duration).Unit != "hours" {
		t.Fatalf("explicit unit lost: %+v", v.V)
	}
}

func TestInferLiteral(t *testing.T) {
	v, ts, err := InferLiteral(fromJSON(t, `true`))
	if err != nil || v.T != BOOL || ts.Base != "Bool" {
		t.Fatalf("bool: %v %v %v", v, ts, err)
	}
	v, ts, err = InferLiteral(fromJSON(t, `42`))
	if err != nil || v.V.(int64) != 42 || ts.Base != "Int" {
		t.Fatalf("int: %v %v %v", v, ts, err)
	}
	// Untyped strings default to Text.
	v, ts, err = InferLiteral(fromJSON(t, `"hello"`))
	if err != nil || v.T != TEXT || ts.Base != "Text" {
		t.Fatalf("text: %v %v %v", v, ts, err)
	}
}

func TestValueToJSON(t *testing.T) {
	m := MakeMoney(dec(t, "42.50"), "USD").ToJSON().(map[string]any)
	if m["kind"] != "money_value" || m["amount"] != "42.50" || m["currency"] != "USD" {
		t.Fatalf("bad money JSON: %v", m)
	}
	r := MakeRecord(map[string]Value{"ok": TRUE}).ToJSON().(map[string]any)
	if r["kind"] != "record_value" {
		t.Fatalf("bad record JSON: %v", r)
	}
	inner := r["fields"].(map[string]any)["ok"].(map[string]any)
	if inner["kind"] != "bool_value" || inner["value"] != true {
		t.Fatalf("bad nested JSON: %v", inner)
	}
	l := MakeList([]Value{MakeInt(1)}).ToJSON().(map[string]any)
	if l["kind"] != "list_value" || len(l["elements"].([]any)) != 1 {
		t.Fatalf("bad list JSON: %v", l)
	}
}

func TestValueEqualNumericDecimals(t *testing.T) {
	a := MakeDecimal(dec(t, "1.50"))
	b := MakeDecimal(dec(t, "1.5"))
	if !a.Equal(b) {
		t.Fatal("1.50 and 1.5 should compare equal")
	}
	if MakeInt(1).Equal(MakeDecimal(decimal.New(1, 0))) {
		t.Fatal("Int and Decimal should not compare equal")
	}
}

func TestTypeSpecFromJSON(t *testing.T) {
	ts, err := TypeSpecFromJSON(fromJSON(t, `{"base":"Int","min":0,"max":100}`))
	if err != nil {
		t.Fatal(err)
	}
	if ts.Base != "Int" || *ts.Min != 0 || *ts.Max != 100 {
		t.Fatalf("bad spec: %+v", ts)
	}
	elem := fromJSON(t, `{"base":"List","element_type":{"base":"Decimal","precision":10,"scale":2}}`)
	ts, err = TypeSpecFromJSON(elem)
	if err != nil {
		t.Fatal(err)
	}
	if ts.ElementType == nil || *ts.ElementType.Scale != 2 {
		t.Fatalf("bad element type: %+v", ts)
	}
	_, err = TypeSpecFromJSON(fromJSON(t, `{"min":0}`))
	if err == nil {
		t.Fatal("missing base should be rejected")
	}
}

func TestFactSet(t *testing.T) {
	fs := NewFactSet()
	fs.Insert("balance", MakeInt(100))
	fs.Insert("active", TRUE)
	v, ok := fs.Get("balance")
	if !ok || v.V.(int64) != 100 {
		t.Fatalf("bad get: %v %v", v, ok)
	}
	if ids := fs.Ids(); len(ids) != 2 || ids[0] != "active" {
		t.Fatalf("ids not sorted: %v", ids)
	}
}

func TestVerdictSetLastMatchWins(t *testing.T) {
	vs := NewVerdictSet()
	vs.Push(VerdictInstance{VerdictType: "Approved", Payload: MakeInt(1)})
	vs.Push(VerdictInstance{VerdictType: "Flagged", Payload: TRUE})
	vs.Push(VerdictInstance{VerdictType: "Approved", Payload: MakeInt(2)})
	if !vs.HasVerdict("Approved") || vs.HasVerdict("Denied") {
		t.Fatal("bad HasVerdict")
	}
	v, ok := vs.GetVerdict("Approved")
	if !ok || v.Payload.V.(int64) != 2 {
		t.Fatalf("most recent verdict should win: %v", v)
	}
}

func TestVerdictSetToJSON(t *testing.T) {
	vs := NewVerdictSet()
	vs.Push(VerdictInstance{
		VerdictType: "Eligible",
		Payload:     TRUE,
		Provenance: VerdictProvenance{
			RuleId:    "r_eligible",
			Stratum:   0,
			FactsUsed: []string{"age"},
		},
	})
	out := vs.ToJSON()
	verdicts := out["verdicts"].([]any)
	if len(verdicts) != 1 {
		t.Fatalf("wanted 1 verdict, got %d", len(verdicts))
	}
	v := verdicts[0].(map[string]any)
	if v["type"] != "Eligible" {
		t.Fatalf("bad type: %v", v)
	}
	prov := v["provenance"].(map[string]any)
	if prov["rule"] != "r_eligible" || prov["stratum"] != 0 {
		t.Fatalf("bad provenance: %v", prov)
	}
	if len(prov["verdicts_used"].([]string)) != 0 {
		t.Fatalf("verdicts_used should be empty, got %v", prov["verdicts_used"])
	}
}

func TestProvenanceCollectorDeduplicates(t *testing.T) {
	var pc ProvenanceCollector
	pc.RecordFact("balance")
	pc.RecordFact("threshold")
	pc.RecordFact("balance")
	pc.RecordVerdict("Active")
	pc.RecordVerdict("Active")
	p := pc.IntoProvenance("r1", 2)
	if len(p.FactsUsed) != 2 || p.FactsUsed[0] != "balance" {
		t.Fatalf("bad facts: %v", p.FactsUsed)
	}
	if len(p.VerdictsUsed) != 1 || p.Stratum != 2 {
		t.Fatalf("bad provenance: %+v", p)
	}
}

func TestContractIndexes(t *testing.T) {
	c := NewContract(
		[]FactDecl{{Id: "amount", Type: BaseSpec("Int")}},
		[]Entity{{
			Id: "Application", States: []string{"draft", "submitted"}, Initial: "draft",
			Transitions: []Transition{{From: "draft", To: "submitted"}},
		}},
		nil,
		[]Operation{{Id: "submit", AllowedPersonas: []string{"applicant"}}},
		[]Flow{{Id: "origination", Entry: "start"}},
		[]string{"applicant"},
	)
	if _, ok := c.GetFact("amount"); !ok {
		t.Fatal("fact lookup failed")
	}
	op, ok := c.GetOperation("submit")
	if !ok || !op.Allows("applicant") || op.Allows("auditor") {
		t.Fatalf("bad operation lookup: %v %v", op, ok)
	}
	e, _ := c.GetEntity("Application")
	if !e.CanTransition("draft", "submitted") || e.CanTransition("submitted", "draft") {
		t.Fatal("bad transition check")
	}
	if _, ok := c.GetFlow("missing"); ok {
		t.Fatal("missing flow should not resolve")
	}
}
