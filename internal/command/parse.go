package command

import (
	"errors"
	"strings"
)

// ErrNotImplemented is wrapped by the ValidationError returned for an
// unrecognized family keyword.
var ErrNotImplemented = errors.New("Not implemented")

// Validation messages. They are printed verbatim as console warnings.
const (
	msgNoProgram     = "No command specified"
	msgNoFileOp      = "No FILE operation supplied"
	msgNoFilePath    = "No FILE filepath supplied"
	msgBadFileOp     = "FILE operation not implemented"
	msgNoSource      = "No source IP address and port supplied"
	msgNoDestination = "No destination IP address and port supplied"
)

// ValidationError reports a malformed or incomplete command detected before
// any OS action is attempted.
type ValidationError struct {
	Keyword string
	Msg     string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(keyword, msg string) *ValidationError {
	return &ValidationError{Keyword: keyword, Msg: msg}
}

// Tokenize splits a line on runs of whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Parse turns one input line into a Command. A blank line yields (nil, nil).
// Any other failure is a *ValidationError.
func Parse(line string) (Command, error) {
	text := strings.TrimSpace(line)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	switch Family(tokens[0]) {
	case FamilySpawn:
		return parseSpawn(text, tokens[1:])
	case FamilyFile:
		return parseFile(text, tokens[1:])
	case FamilyNet:
		return parseNet(text, tokens[1:])
	default:
		return nil, &ValidationError{
			Keyword: tokens[0],
			Msg:     ErrNotImplemented.Error(),
			Err:     ErrNotImplemented,
		}
	}
}

func parseSpawn(text string, operands []string) (Command, error) {
	if len(operands) == 0 {
		return nil, invalid(string(FamilySpawn), msgNoProgram)
	}
	return Spawn{
		Text:    text,
		Program: operands[0],
		Args:    operands[1:],
	}, nil
}

func parseFile(text string, operands []string) (Command, error) {
	if len(operands) < 1 {
		return nil, invalid(string(FamilyFile), msgNoFileOp)
	}
	if len(operands) < 2 {
		return nil, invalid(string(FamilyFile), msgNoFilePath)
	}

	kind := FileKind(operands[0])
	switch kind {
	case FileNew, FileDel, FileMod:
	default:
		return nil, invalid(string(FamilyFile), msgBadFileOp)
	}

	return FileOp{
		Text: text,
		Kind: kind,
		Path: operands[1],
		Data: optional(operands, 2),
	}, nil
}

func parseNet(text string, operands []string) (Command, error) {
	if len(operands) < 1 {
		return nil, invalid(string(FamilyNet), msgNoSource)
	}
	if len(operands) < 2 {
		return nil, invalid(string(FamilyNet), msgNoDestination)
	}
	return NetSend{
		Text: text,
		Src:  operands[0],
		Dst:  operands[1],
		Data: optional(operands, 2),
	}, nil
}

// optional returns operands[i], or "" when absent. Tokens past i are ignored.
func optional(operands []string, i int) string {
	if i < len(operands) {
		return operands[i]
	}
	return ""
}
