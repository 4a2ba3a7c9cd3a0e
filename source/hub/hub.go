// Package hub is the interactive front end: it keeps a registry of
// loaded contracts, routes REPL input to the service layer, and
// remembers the last errors so 'why' can explain them.
package hub

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/serve"
	"github.com/tenorlang/tenor/source/service"
	"github.com/tenorlang/tenor/source/storage"
	"github.com/tenorlang/tenor/source/text"
)

type Hub struct {
	service         *service.Service
	ers             err.Errors
	in              io.Reader
	out             io.Writer
	currentContract string
	serving         bool
}

func New(in io.Reader, out io.Writer) *Hub {
	return &Hub{
		service: service.NewService(),
		in:      in,
		out:     out,
	}
}

func (hub *Hub) Service() *service.Service {
	return hub.service
}

func (hub *Hub) CurrentContractName() string {
	return hub.currentContract
}

// Do takes one line of REPL input. It interprets the line as a hub
// command if it begins with 'hub'; as one of the bare commands 'eval',
// 'flow', 'why', 'help', or 'quit'; and otherwise as a facts document
// to evaluate against the current contract. It reports whether the
// hub should quit.
func (hub *Hub) Do(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "//") {
		return false
	}

	words := strings.Fields(line)
	if words[0] == "hub" {
		if len(words) == 1 {
			hub.WriteError("you need to say what you want the hub to do.")
			return false
		}
		return hub.doHubCommand(words[1], words[2:])
	}

	switch words[0] {
	case "quit":
		hub.quit()
		return true
	case "help":
		hub.help()
		return false
	case "why":
		hub.why()
		return false
	case "eval":
		hub.evalFacts(strings.TrimSpace(line[len("eval"):]))
		return false
	case "flow":
		hub.runFlow(words[1:], line)
		return false
	}

	// Anything else is taken to be a facts document.

	if strings.HasPrefix(line, "{") {
		hub.evalFacts(line)
		return false
	}
	hub.WriteError("the hub doesn't know what to do with that. Try 'help'.")
	return false
}

func (hub *Hub) doHubCommand(verb string, args []string) bool {
	switch verb {
	case "quit":
		hub.quit()
		return true
	case "help":
		hub.help()
	case "why":
		hub.why()
	case "run":
		if len(args) != 1 {
			hub.WriteError("'hub run' needs the name of a contract file.")
			return false
		}
		hub.runFile(args[0])
	case "list":
		hub.list()
	case "use":
		if len(args) != 1 {
			hub.WriteError("'hub use' needs the name of a loaded contract.")
			return false
		}
		if _, ok := hub.service.Get(args[0]); !ok {
			hub.WriteError("the hub can't find the contract " + text.Emph(args[0]) + ".")
			return false
		}
		hub.currentContract = args[0]
		hub.WriteString(text.OK + "\n")
	case "ops":
		hub.listOperations()
	case "flows":
		hub.listFlows()
	case "serve":
		addr := serve.DEFAULT_ADDR
		if len(args) == 1 {
			addr = args[0]
		}
		hub.startServing(addr)
	case "db":
		hub.configDb(args)
	default:
		hub.WriteError("the hub doesn't recognize the command " + text.Emph(verb) + ". Try 'help'.")
	}
	return false
}

func (hub *Hub) runFile(path string) {
	lc, e := hub.service.LoadFile(path)
	if e != nil {
		hub.ers = err.Errors{e}
		hub.writeErrors()
		return
	}
	hub.ers = nil
	hub.currentContract = lc.Id
	hub.WriteString(text.OK + " contract " + text.Emph(lc.Id) + " is now current.\n")
}

func (hub *Hub) list() {
	ids := hub.service.Ids()
	if len(ids) == 0 {
		hub.WriteString("The hub has no contracts loaded. Load one with 'hub run <file>'.\n")
		return
	}
	hub.WriteString("\n")
	for _, id := range ids {
		bullet := text.BULLET
		if id == hub.currentContract {
			bullet = text.GOOD_BULLET
		}
		hub.WriteString(bullet + id + "\n")
	}
	hub.WriteString("\n")
}

func (hub *Hub) listOperations() {
	if hub.currentContract == "" {
		hub.WriteError("no contract is current. Load one with 'hub run <file>'.")
		return
	}
	ops, e := hub.service.Operations(hub.currentContract)
	if e != nil {
		hub.WriteError(e.Error())
		return
	}
	if len(ops) == 0 {
		hub.WriteString("The contract declares no operations.\n")
		return
	}
	hub.WriteString("\n")
	for _, op := range ops {
		hub.WriteString(text.BULLET + op.Id + " [" + strings.Join(op.Personas, ", ") +
			"] -> (" + strings.Join(op.Outcomes, ", ") + ")\n")
	}
	hub.WriteString("\n")
}

func (hub *Hub) listFlows() {
	if hub.currentContract == "" {
		hub.WriteError("no contract is current. Load one with 'hub run <file>'.")
		return
	}
	flows, e := hub.service.Flows(hub.currentContract)
	if e != nil {
		hub.WriteError(e.Error())
		return
	}
	if len(flows) == 0 {
		hub.WriteString("The contract declares no flows.\n")
		return
	}
	hub.WriteString("\n")
	for _, f := range flows {
		hub.WriteString(text.BULLET + f.Id + " (entry " + f.Entry + ")\n")
	}
	hub.WriteString("\n")
}

func (hub *Hub) evalFacts(factsText string) {
	if hub.currentContract == "" {
		hub.WriteError("no contract is current. Load one with 'hub run <file>'.")
		return
	}
	if factsText == "" {
		hub.WriteError("'eval' needs a facts document, e.g. eval {\"balance\": 100}.")
		return
	}
	facts, parseErr := service.ParseFacts([]byte(factsText))
	if parseErr != nil {
		hub.WriteError(parseErr.Error())
		return
	}
	explained, evalErr := hub.service.Explain(hub.currentContract, facts)
	if evalErr != nil {
		hub.WriteError(evalErr.Message)
		return
	}
	hub.writeJSON(explained)
}

// runFlow handles 'flow <flowId> <persona> <facts json>'. The facts
// document is everything after the persona word.
func (hub *Hub) runFlow(args []string, line string) {
	if hub.currentContract == "" {
		hub.WriteError("no contract is current. Load one with 'hub run <file>'.")
		return
	}
	if len(args) < 3 {
		hub.WriteError("'flow' needs a flow id, a persona, and a facts document, " +
			"e.g. flow underwrite Underwriter {\"income_ok\": true}.")
		return
	}
	flowId, persona := args[0], args[1]
	pos := strings.Index(line, "{")
	if pos == -1 {
		hub.WriteError("'flow' needs a facts document after the persona.")
		return
	}
	facts, parseErr := service.ParseFacts([]byte(line[pos:]))
	if parseErr != nil {
		hub.WriteError(parseErr.Error())
		return
	}
	result, evalErr := hub.service.ExecuteFlow(hub.currentContract, facts, flowId, persona)
	if evalErr != nil {
		hub.WriteError(evalErr.Message)
		return
	}
	executionId, dbErr := hub.service.RecordFlowExecution(context.Background(),
		hub.currentContract, flowId, result)
	if dbErr != nil {
		hub.WriteError(dbErr.Error())
		return
	}
	out := map[string]any{
		"outcome":  result.FlowResult.Outcome,
		"persona":  result.FlowResult.InitiatingPersona,
		"verdicts": result.Verdicts.ToJSON()["verdicts"],
	}
	steps := make([]any, 0, len(result.FlowResult.StepsExecuted))
	for _, s := range result.FlowResult.StepsExecuted {
		steps = append(steps, map[string]any{
			"step_id": s.StepId, "step_type": s.StepType, "result": s.Result,
		})
	}
	out["steps"] = steps
	if executionId != "" {
		out["execution_id"] = executionId
	}
	hub.writeJSON(out)
}

// configDb attaches a database to the service, so flow runs get
// persisted from then on, both here and over HTTP.
func (hub *Hub) configDb(args []string) {
	if len(args) != 6 {
		hub.WriteError("'hub db' needs a driver, host, port, database, user, and password. " +
			"The supported drivers are: " + strings.Join(storage.GetSortedDrivers(), ", ") + ".")
		return
	}
	st, dbErr := storage.Open(args[0], args[1], args[2], args[3], args[4], args[5])
	if dbErr != nil {
		hub.WriteError(dbErr.Error())
		return
	}
	if dbErr := st.Init(context.Background()); dbErr != nil {
		hub.WriteError(dbErr.Error())
		return
	}
	hub.service.SetStore(st)
	hub.WriteString(text.OK + " flow runs will now be persisted to " + text.Emph(args[3]) + ".\n")
}

func (hub *Hub) startServing(addr string) {
	if hub.serving {
		hub.WriteError("the hub is already serving.")
		return
	}
	hub.serving = true
	go func() {
		if serveErr := serve.Serve(addr, hub.service); serveErr != nil {
			hub.WriteError(serveErr.Error())
		}
	}()
	hub.WriteString(text.OK + " serving on " + addr + ".\n")
}

// why explains the last errors at length, as the error file does for
// each error id.
func (hub *Hub) why() {
	if len(hub.ers) == 0 {
		hub.WriteString("There are no recent errors.\n")
		return
	}
	for _, e := range hub.ers {
		hub.WriteString("\n" + text.Emph(e.Message) + "\n\n")
		hub.WriteString(err.GetExplanation(e) + "\n")
	}
	hub.WriteString("\n")
}

func (hub *Hub) writeErrors() {
	for _, e := range hub.ers {
		where := ""
		if e.File != "" && e.Line > 0 {
			where = " at line " + strconv.Itoa(e.Line) + " of " + text.Emph(e.File)
		}
		hub.WriteError(e.Message + where)
	}
	if len(hub.ers) > 0 {
		hub.WriteString("Say 'why' for an explanation.\n")
	}
}

func (hub *Hub) writeJSON(v any) {
	data, marshalErr := json.MarshalIndent(v, "", "    ")
	if marshalErr != nil {
		hub.WriteError(marshalErr.Error())
		return
	}
	hub.WriteString(string(data) + "\n")
}

func (hub *Hub) quit() {
	hub.WriteString(text.OK + "\n" + text.Logo() + "Thank you for using Tenor. Have a nice day!\n\n")
}

func (hub *Hub) help() {
	hub.WriteString("\n")
	hub.WriteString("Hub commands are:\n")
	hub.WriteString("\n")
	topics := make([]string, 0, len(helpStrings))
	for k := range helpStrings {
		topics = append(topics, k)
	}
	sort.Strings(topics)
	for _, v := range topics {
		hub.WriteString("  " + text.BULLET + v + " : " + helpStrings[v] + "\n")
	}
	hub.WriteString("\n")
}

func (hub *Hub) WriteError(s string) {
	hub.WriteString("\n" + text.Red("Hub error") + ": " + s + "\n")
}

func (hub *Hub) WriteString(s string) {
	io.WriteString(hub.out, s)
}

var helpStrings = map[string]string{
	"hub run <file>":     "elaborates a contract file and makes it current",
	"hub use <contract>": "makes an already-loaded contract current",
	"hub list":           "lists the loaded contracts",
	"hub ops":            "lists the operations of the current contract",
	"hub flows":          "lists the flows of the current contract",
	"hub serve [addr]":   "serves the loaded contracts over HTTP",
	"hub db <driver> <host> <port> <db> <user> <password>": "persists flow runs to a database",
	"eval <facts>":                "evaluates the rules of the current contract",
	"flow <id> <persona> <facts>": "runs a flow of the current contract",
	"why":                         "explains the most recent errors at length",
	"quit":                        "shuts the hub down",
}
