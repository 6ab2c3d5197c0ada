package activity

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Assembler rebuilds records from the log's text format one line at a time.
// A record is complete when the next record or a run marker begins, or when
// the caller flushes.
type Assembler struct {
	cur  *Record
	runs int
	line int
}

// Runs returns the number of run markers seen so far.
func (a *Assembler) Runs() int {
	return a.runs
}

// Feed consumes one line (without its newline). It returns the previous
// record when this line closes it.
func (a *Assembler) Feed(line string) (*Record, error) {
	a.line++
	line = strings.TrimRight(line, "\r")

	switch {
	case line == "":
		return nil, nil

	case line == runMarker:
		a.runs++
		return a.take(), nil

	case strings.HasPrefix(line, keyTimestamp+":"):
		ts, err := ParseTimestamp(strings.TrimPrefix(line, keyTimestamp+":"))
		if err != nil {
			return nil, a.errorf("bad timestamp: %v", err)
		}
		done := a.take()
		a.cur = &Record{Timestamp: ts}
		return done, nil

	case strings.HasPrefix(line, tailIndent):
		if a.cur == nil {
			return nil, a.errorf("field outside a record")
		}
		f, err := a.field(strings.TrimPrefix(line, tailIndent))
		if err != nil {
			return nil, err
		}
		a.cur.Fields = append(a.cur.Fields, f)
		return nil, nil

	case strings.HasPrefix(line, headerIndent):
		if a.cur == nil {
			return nil, a.errorf("field outside a record")
		}
		f, err := a.field(strings.TrimPrefix(line, headerIndent))
		if err != nil {
			return nil, err
		}
		return nil, a.setHeader(f)

	default:
		return nil, a.errorf("unexpected line %q", line)
	}
}

// Flush returns the record being assembled, if any.
func (a *Assembler) Flush() (Record, bool) {
	rec := a.take()
	if rec == nil {
		return Record{}, false
	}
	return *rec, true
}

func (a *Assembler) take() *Record {
	rec := a.cur
	a.cur = nil
	return rec
}

func (a *Assembler) field(s string) (Field, error) {
	key, value, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return Field{}, a.errorf("malformed field %q", s)
	}
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return Quoted(key, value[1:len(value)-1]), nil
	}
	return Raw(key, value), nil
}

func (a *Assembler) setHeader(f Field) error {
	switch f.Key {
	case keyCommandLine:
		a.cur.CommandLine = f.Value
	case keyPID:
		pid, err := strconv.Atoi(f.Value)
		if err != nil {
			return a.errorf("bad pid %q", f.Value)
		}
		a.cur.PID = pid
	case keyProcessName:
		a.cur.ProcessName = f.Value
	case keyUsername:
		a.cur.Username = f.Value
	case keyActivityType:
		a.cur.Type = Type(f.Value)
	default:
		return a.errorf("unknown header field %q", f.Key)
	}
	return nil
}

func (a *Assembler) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("activity log line %d: %s", a.line, fmt.Sprintf(format, args...))
}

// Decoder reads records from an activity log stream.
type Decoder struct {
	sc  *bufio.Scanner
	asm Assembler
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Decoder{sc: sc}
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (d *Decoder) Next() (Record, error) {
	for d.sc.Scan() {
		rec, err := d.asm.Feed(d.sc.Text())
		if err != nil {
			return Record{}, err
		}
		if rec != nil {
			return *rec, nil
		}
	}
	if err := d.sc.Err(); err != nil {
		return Record{}, err
	}
	if rec, ok := d.asm.Flush(); ok {
		return rec, nil
	}
	return Record{}, io.EOF
}

// Runs returns the number of run markers read so far.
func (d *Decoder) Runs() int {
	return d.asm.Runs()
}

// ParseRecords decodes every record in r.
func ParseRecords(r io.Reader) ([]Record, error) {
	dec := NewDecoder(r)
	var records []Record
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
