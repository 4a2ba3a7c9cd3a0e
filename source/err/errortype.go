package err

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// The 'error' type produced by elaboration. Every error any pass can throw
// carries the pass number that threw it, the construct it was thrown against
// (when one is known), the offending field (when one is known), and the file
// and line of the source text responsible.
type Error struct {
	ErrorId       string
	Pass          int
	ConstructKind string
	ConstructId   string
	Field         string
	File          string
	Line          int
	Message       string
	Args          []any
}

type Errors []*Error

// CreateErr looks the error up in the ErrorCreatorMap, formats its message
// from the args, and stamps it with pass, file, and line. Construct kind, id,
// and field are attached afterwards with On and At as the thrower knows them.
func CreateErr(errorID string, pass int, file string, line int, args ...any) *Error {
	creator, ok := ErrorCreatorMap[errorID]
	if !ok {
		return &Error{ErrorId: errorID, Pass: pass, File: file, Line: line,
			Message: "oopsie, can't find errorID " + errorID, Args: args}
	}
	return &Error{ErrorId: errorID, Pass: pass, File: file, Line: line,
		Message: creator.Message(args...), Args: args}
}

func (e *Error) On(kind, id string) *Error {
	e.ConstructKind = kind
	e.ConstructId = id
	return e
}

func (e *Error) At(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) Error() string {
	return e.Message
}

// The interchange artifact for an error: keys in lexical order, absent
// construct kind, id, and field emitted as null.
func (e *Error) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	writeKey(&b, "construct_id", e.ConstructId)
	b.WriteByte(',')
	writeKey(&b, "construct_kind", e.ConstructKind)
	b.WriteByte(',')
	writeKey(&b, "field", e.Field)
	b.WriteByte(',')
	b.WriteString(`"file":`)
	writeString(&b, e.File)
	b.WriteByte(',')
	b.WriteString(`"line":` + strconv.Itoa(e.Line))
	b.WriteByte(',')
	b.WriteString(`"message":`)
	writeString(&b, e.Message)
	b.WriteByte(',')
	b.WriteString(`"pass":` + strconv.Itoa(e.Pass))
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeKey(b *bytes.Buffer, key, value string) {
	b.WriteString(`"` + key + `":`)
	if value == "" {
		b.WriteString("null")
		return
	}
	writeString(b, value)
}

func writeString(b *bytes.Buffer, s string) {
	quoted, _ := json.Marshal(s)
	b.Write(quoted)
}

// GetExplanation serves the hub's 'why' command.
func GetExplanation(e *Error) string {
	creator, ok := ErrorCreatorMap[e.ErrorId]
	if !ok {
		return "oopsie, can't find errorID " + e.ErrorId
	}
	return creator.Explanation(e.Args...)
}
