package activity

import (
	"bytes"
	"strconv"
	"time"
)

// Type is the activity-type tag of a record.
type Type string

const (
	TypeSpawn Type = "SPAWN"
	TypeFile  Type = "FILE"
	TypeNet   Type = "NET"
)

// ValidType reports whether t is one of the known activity types.
func ValidType(t Type) bool {
	switch t {
	case TypeSpawn, TypeFile, TypeNet:
		return true
	}
	return false
}

// Field is one family-specific key/value pair in a record's tail.
// Quoted values are written wrapped in double quotes.
type Field struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Quoted bool   `json:"quoted,omitempty"`
}

// Quoted returns a field rendered as key:"value".
func Quoted(key, value string) Field {
	return Field{Key: key, Value: value, Quoted: true}
}

// Raw returns a field rendered as key:value.
func Raw(key, value string) Field {
	return Field{Key: key, Value: value}
}

func (f Field) String() string {
	if f.Quoted {
		return f.Key + `:"` + f.Value + `"`
	}
	return f.Key + ":" + f.Value
}

// Record is a single activity entry: a fixed header plus a family-specific tail.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	CommandLine string    `json:"commandLine"`
	PID         int       `json:"pid"`
	ProcessName string    `json:"processName"`
	Username    string    `json:"username"`
	Type        Type      `json:"activityType"`
	Fields      []Field   `json:"fields,omitempty"`
}

// Field returns the value of the first tail field named key.
func (r Record) Field(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Header and tail keys of the text format.
const (
	keyTimestamp    = "timestamp"
	keyCommandLine  = "command-line"
	keyPID          = "pid"
	keyProcessName  = "process-name"
	keyUsername     = "username"
	keyActivityType = "activity-type"

	headerIndent = "  - "
	tailIndent   = "    - "
	runMarker    = "---"
)

// FormatTimestamp renders t as an RFC 2822 timestamp in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC1123Z, s)
}

// Format renders the record in the log's text format: the header lines
// followed by one double-indented line per tail field.
func (r Record) Format() []byte {
	var b bytes.Buffer
	b.WriteString(keyTimestamp + ":" + FormatTimestamp(r.Timestamp) + "\n")
	b.WriteString(headerIndent + Quoted(keyCommandLine, r.CommandLine).String() + "\n")
	b.WriteString(headerIndent + Raw(keyPID, strconv.Itoa(r.PID)).String() + "\n")
	b.WriteString(headerIndent + Quoted(keyProcessName, r.ProcessName).String() + "\n")
	b.WriteString(headerIndent + Quoted(keyUsername, r.Username).String() + "\n")
	b.WriteString(headerIndent + Quoted(keyActivityType, string(r.Type)).String() + "\n")
	for _, f := range r.Fields {
		b.WriteString(tailIndent + f.String() + "\n")
	}
	return b.Bytes()
}
