package test_helper

import (
	"testing"

	"github.com/tenorlang/tenor/source/settings"
	"github.com/tenorlang/tenor/source/text"
)

// Auxiliary types and functions for testing the parser and the elaborator.

type TestItem struct {
	Input string
	Want  string
}

// RunTest feeds each test input to F and compares the result against Want.
// An error from F is itself rendered as the result, so tests can assert on
// error messages with the same machinery.
func RunTest(t *testing.T, tests []TestItem, F func(s string) (string, error)) {
	for _, test := range tests {
		if settings.SHOW_TESTS {
			println(text.BULLET + "Running test " + text.Emph(test.Input))
		}
		got, e := F(test.Input)
		if e != nil {
			got = e.Error()
		}
		if test.Want != got {
			t.Fatalf(`Test failed with input %s | Wanted : %s | Got : %s.`, test.Input, test.Want, got)
		}
	}
}
