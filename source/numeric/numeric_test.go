package numeric

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tenorlang/tenor/source/test_helper"
	"github.com/tenorlang/tenor/source/values"
)

func dec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func decimalSpec(precision, scale int) values.TypeSpec {
	return values.TypeSpec{Base: "Decimal", Precision: &precision, Scale: &scale}
}

func intSpec(min, max int64) values.TypeSpec {
	return values.TypeSpec{Base: "Int", Min: &min, Max: &max}
}

func TestPromoteIntToDecimal(t *testing.T) {
	got := PromoteIntToDecimal(42, decimalSpec(10, 2))
	if !got.Equal(dec(t, "42.00")) {
		t.Fatalf("wanted 42.00, got %s", got)
	}
	got = PromoteIntToDecimal(123, decimalSpec(5, 0))
	if !got.Equal(dec(t, "123")) {
		t.Fatalf("wanted 123, got %s", got)
	}
}

func TestEvalMul(t *testing.T) {
	got, err := EvalMul(dec(t, "10.50"), dec(t, "3"), 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(dec(t, "31.50")) {
		t.Fatalf("wanted 31.50, got %s", got)
	}
}

func TestEvalMulPrecisionOverflow(t *testing.T) {
	// precision 4 scale 2 allows at most 99 in the integer part.
	_, err := EvalMul(dec(t, "50.00"), dec(t, "3"), 4, 2)
	if err == nil {
		t.Fatal("wanted overflow error")
	}
	if err.Code != values.OVERFLOW {
		t.Fatalf("wanted OVERFLOW, got %v", err)
	}
}

func TestEvalMulRoundsHalfToEven(t *testing.T) {
	got, err := EvalMul(dec(t, "2.5"), dec(t, "1"), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(dec(t, "2")) {
		t.Fatalf("2.5 should round to 2, got %s", got)
	}
	got, err = EvalMul(dec(t, "3.5"), dec(t, "1"), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(dec(t, "4")) {
		t.Fatalf("3.5 should round to 4, got %s", got)
	}
}

func TestEvalIntMul(t *testing.T) {
	got, err := EvalIntMul(5, 10, intSpec(0, 100))
	if err != nil {
		t.Fatal(err)
	}
	if got.V.(int64) != 50 {
		t.Fatalf("wanted 50, got %v", got.V)
	}
}

func TestEvalIntMulRangeViolation(t *testing.T) {
	_, err := EvalIntMul(5, 25, intSpec(0, 100))
	if err == nil {
		t.Fatal("wanted overflow error")
	}
	if !strings.Contains(err.Message, "outside declared range [0, 100]") {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestEvalIntMulInt64Overflow(t *testing.T) {
	_, err := EvalIntMul(1<<62, 4, values.TypeSpec{Base: "Int"})
	if err == nil {
		t.Fatal("wanted overflow error")
	}
}

func TestCompareInts(t *testing.T) {
	for _, test := range []struct {
		l, r int64
		op   string
		want bool
	}{
		{5, 10, "<", true},
		{10, 10, ">=", true},
		{10, 10, "!=", false},
		{7, 7, "=", true},
	} {
		got, err := CompareValues(values.MakeInt(test.l), values.MakeInt(test.r), test.op, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != test.want {
			t.Fatalf("%d %s %d: wanted %v", test.l, test.op, test.r, test.want)
		}
	}
}

func TestCompareBoolsOrderedOperatorRejected(t *testing.T) {
	_, err := CompareValues(values.TRUE, values.FALSE, "<", nil)
	if err == nil {
		t.Fatal("wanted invalid operator error")
	}
	if err.Code != values.INVALID_OPERATOR {
		t.Fatalf("wanted INVALID_OPERATOR, got %v", err)
	}
}

func TestCompareTextOrderedOperatorRejected(t *testing.T) {
	_, err := CompareValues(values.MakeText("a"), values.MakeText("b"), "<", nil)
	if err == nil {
		t.Fatal("wanted type error")
	}
	if !strings.Contains(err.Message, "Text supports only = and !=") {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestCompareMoneyMismatchedCurrency(t *testing.T) {
	l := values.MakeMoney(dec(t, "100.00"), "USD")
	r := values.MakeMoney(dec(t, "100.00"), "EUR")
	_, err := CompareValues(l, r, "=", nil)
	if err == nil {
		t.Fatal("wanted type error")
	}
	if !strings.Contains(err.Message, "different currencies: USD vs EUR") {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestCompareMoneyWithPromotion(t *testing.T) {
	l := values.MakeMoney(dec(t, "100.00"), "USD")
	r := values.MakeMoney(dec(t, "200.00"), "USD")
	ct := values.TypeSpec{Base: "Money", Currency: "USD"}
	got, err := CompareValues(l, r, "<=", &ct)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("100.00 USD should be <= 200.00 USD")
	}
}

func TestCompareIntDecimalPromotion(t *testing.T) {
	ct := decimalSpec(9, 2)
	got, err := CompareValues(values.MakeInt(100), values.MakeDecimal(dec(t, "99.50")), ">", &ct)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("100 should promote to 100.00 and exceed 99.50")
	}
	got, err = CompareValues(values.MakeInt(100), values.MakeDecimal(dec(t, "100.00")), "=", &ct)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("100 should equal 100.00 after promotion")
	}
}

func TestCompareDurationCrossUnit(t *testing.T) {
	l := values.MakeDuration(60, "seconds")
	r := values.MakeDuration(1, "minutes")
	_, err := CompareValues(l, r, "=", nil)
	if err == nil {
		t.Fatal("wanted type error")
	}
	if !strings.Contains(err.Message, "different units") {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestCompareDurationSameUnit(t *testing.T) {
	l := values.MakeDuration(30, "seconds")
	r := values.MakeDuration(60, "seconds")
	got, err := CompareValues(l, r, "<", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("30s should be less than 60s")
	}
}

func TestCompareDatesAsStrings(t *testing.T) {
	got, err := CompareValues(values.MakeDate("2024-01-15"), values.MakeDate("2024-02-01"), "<", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("2024-01-15 should sort before 2024-02-01")
	}
}

func TestCompareInvalidOperator(t *testing.T) {
	_, err := CompareValues(values.MakeInt(1), values.MakeInt(2), "~", nil)
	if err == nil {
		t.Fatal("wanted invalid operator error")
	}
	if err.Message != "invalid operator: ~" {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestCompareMismatchedTypes(t *testing.T) {
	_, err := CompareValues(values.MakeInt(1), values.MakeText("1"), "=", nil)
	if err == nil {
		t.Fatal("wanted type error")
	}
	if !strings.Contains(err.Message, "cannot compare Int with Text") {
		t.Fatalf("wrong message: %s", err.Message)
	}
}

func TestCheckPrecisionWideBounds(t *testing.T) {
	// 28 integer digits is the widest checked bound; beyond it any
	// representable value passes.
	if err := checkPrecision(dec(t, "12345"), 20, 0); err != nil {
		t.Fatal(err)
	}
	if err := checkPrecision(dec(t, "999999999"), 38, 0); err != nil {
		t.Fatal(err)
	}
	if err := checkPrecision(dec(t, "100.00"), 4, 2); err == nil {
		t.Fatal("100.00 should not fit precision(4, 2)")
	}
	// precision equal to scale leaves no room for an integer part.
	if err := checkPrecision(dec(t, "0.25"), 2, 2); err != nil {
		t.Fatal(err)
	}
	if err := checkPrecision(dec(t, "1.25"), 2, 2); err == nil {
		t.Fatal("1.25 should not fit precision(2, 2)")
	}
}

func TestMulRoundingTable(t *testing.T) {
	// "left right" pairs multiplied at precision 10, scale 2. The odd
	// half-cent cases land on the even neighbor.
	tests := []test_helper.TestItem{
		{Input: "10.50 3", Want: "31.50"},
		{Input: "0.125 1", Want: "0.12"},
		{Input: "0.135 1", Want: "0.14"},
		{Input: "2.345 2", Want: "4.69"},
		{Input: "19.99 0.05", Want: "1.00"},
		{Input: "0.105 1", Want: "0.10"},
		{Input: "123456789.99 10", Want: "numeric overflow: result 1234567899.9 exceeds declared precision(10, 2)"},
	}
	test_helper.RunTest(t, tests, func(s string) (string, error) {
		parts := strings.Fields(s)
		left, right := dec(t, parts[0]), dec(t, parts[1])
		got, e := EvalMul(left, right, 10, 2)
		if e != nil {
			return "", e
		}
		return got.StringFixed(2), nil
	})
}
