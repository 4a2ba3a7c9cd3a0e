package hub_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tenorlang/tenor/source/hub"
)

const loanContract = `
persona Underwriter

fact income_ok {
	type: Bool
	source: "underwriting.income"
}

entity Application {
	states: [submitted, approved]
	initial: submitted
	transitions: [(submitted, approved)]
}

rule income_check {
	stratum: 0
	when: income_ok = true
	produce: verdict IncomeOk
}

operation approve {
	allowed_personas: [Underwriter]
	precondition: verdict_present(IncomeOk)
	effects: [(Application, submitted, approved)]
	outcomes: [approved]
}

flow underwrite {
	snapshot: frozen
	entry: do_approve
	steps: {
		do_approve: OperationStep {
			op: approve
			persona: Underwriter
			outcomes: { approved: Terminal(done) }
			on_failure: Terminate(failed)
		}
	}
}
`

func newTestHub(t *testing.T) (*hub.Hub, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return hub.New(strings.NewReader(""), out), out
}

func writeContract(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loan.tenor")
	if writeErr := os.WriteFile(path, []byte(source), 0644); writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}
	return path
}

func TestQuit(t *testing.T) {
	hb, out := newTestHub(t)
	if !hb.Do("quit") {
		t.Fatal("quit did not quit")
	}
	if !strings.Contains(out.String(), "Thank you for using Tenor") {
		t.Errorf("bad farewell: %s", out.String())
	}
}

func TestHelp(t *testing.T) {
	hb, out := newTestHub(t)
	if hb.Do("help") {
		t.Fatal("help quit the hub")
	}
	for _, want := range []string{"hub run <file>", "eval <facts>", "why"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help is missing %q", want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	hb, out := newTestHub(t)
	hb.Do("hub frobnicate")
	if !strings.Contains(out.String(), "doesn't recognize the command") {
		t.Errorf("bad response: %s", out.String())
	}
}

func TestRunAndEval(t *testing.T) {
	hb, out := newTestHub(t)
	path := writeContract(t, loanContract)

	hb.Do("hub run " + path)
	if !strings.Contains(out.String(), "'loan' is now current") {
		t.Fatalf("run failed: %s", out.String())
	}
	if hb.CurrentContractName() != "loan" {
		t.Fatalf("bad current contract: %s", hb.CurrentContractName())
	}

	out.Reset()
	hb.Do(`eval {"income_ok": true}`)
	if !strings.Contains(out.String(), `"type": "IncomeOk"`) {
		t.Errorf("bad eval output: %s", out.String())
	}
	if !strings.Contains(out.String(), `"rule": "income_check"`) {
		t.Errorf("provenance missing: %s", out.String())
	}
}

func TestBareFactsDocument(t *testing.T) {
	hb, out := newTestHub(t)
	hb.Do("hub run " + writeContract(t, loanContract))
	out.Reset()

	// A line starting with '{' is taken as facts without the 'eval'.
	hb.Do(`{"income_ok": false}`)
	if !strings.Contains(out.String(), `"verdicts": []`) {
		t.Errorf("bad output: %s", out.String())
	}
}

func TestFlowCommand(t *testing.T) {
	hb, out := newTestHub(t)
	hb.Do("hub run " + writeContract(t, loanContract))
	out.Reset()

	hb.Do(`flow underwrite Underwriter {"income_ok": true}`)
	if !strings.Contains(out.String(), `"outcome": "done"`) {
		t.Errorf("bad flow output: %s", out.String())
	}
	if !strings.Contains(out.String(), `"result": "approved"`) {
		t.Errorf("steps missing: %s", out.String())
	}
}

func TestEvalWithoutContract(t *testing.T) {
	hb, out := newTestHub(t)
	hb.Do(`eval {"income_ok": true}`)
	if !strings.Contains(out.String(), "no contract is current") {
		t.Errorf("bad response: %s", out.String())
	}
}

func TestListAndOps(t *testing.T) {
	hb, out := newTestHub(t)
	hb.Do("hub list")
	if !strings.Contains(out.String(), "no contracts loaded") {
		t.Errorf("bad empty list: %s", out.String())
	}

	hb.Do("hub run " + writeContract(t, loanContract))
	out.Reset()
	hb.Do("hub list")
	if !strings.Contains(out.String(), "loan") {
		t.Errorf("contract not listed: %s", out.String())
	}

	out.Reset()
	hb.Do("hub ops")
	if !strings.Contains(out.String(), "approve [Underwriter] -> (approved)") {
		t.Errorf("bad ops listing: %s", out.String())
	}

	out.Reset()
	hb.Do("hub flows")
	if !strings.Contains(out.String(), "underwrite (entry do_approve)") {
		t.Errorf("bad flows listing: %s", out.String())
	}
}

func TestWhyExplainsLastError(t *testing.T) {
	hb, out := newTestHub(t)
	badPath := writeContract(t, "fact broken {\n\tsource: \"a.b\"\n}\n")

	hb.Do("hub run " + badPath)
	if !strings.Contains(out.String(), "Say 'why' for an explanation.") {
		t.Fatalf("error not reported: %s", out.String())
	}

	out.Reset()
	hb.Do("why")
	if !strings.Contains(out.String(), "type") {
		t.Errorf("no explanation: %s", out.String())
	}

	// A successful run clears the errors.
	hb.Do("hub run " + writeContract(t, loanContract))
	out.Reset()
	hb.Do("why")
	if !strings.Contains(out.String(), "There are no recent errors.") {
		t.Errorf("errors not cleared: %s", out.String())
	}
}

func TestDbCommand(t *testing.T) {
	hb, out := newTestHub(t)

	hb.Do("hub db")
	if !strings.Contains(out.String(), "The supported drivers are: Firebird SQL,") {
		t.Fatalf("driver list missing: %s", out.String())
	}

	out.Reset()
	hb.Do("hub db NoSuchDB localhost 5432 tenor sa secret")
	if !strings.Contains(out.String(), `unknown driver "NoSuchDB"`) {
		t.Errorf("bad error: %s", out.String())
	}
	if hb.Service().Store() != nil {
		t.Error("store attached despite failure")
	}
}
