package command

// Family is the top-level command category selected by the first token.
type Family string

const (
	FamilySpawn Family = "SPAWN"
	FamilyFile  Family = "FILE"
	FamilyNet   Family = "NET"
)

// FileKind is the operation keyword of a FILE command.
type FileKind string

const (
	FileNew FileKind = "NEW"
	FileDel FileKind = "DEL"
	FileMod FileKind = "MOD"
)

// Command is one parsed input line. The concrete type is one of Spawn,
// FileOp or NetSend.
type Command interface {
	Family() Family
	// Line returns the trimmed input line the command was parsed from.
	Line() string
}

// Spawn launches Program with Args passed verbatim as its argument vector.
type Spawn struct {
	Text    string
	Program string
	Args    []string
}

func (Spawn) Family() Family { return FamilySpawn }
func (c Spawn) Line() string { return c.Text }

// FileOp creates, deletes or appends to the file at Path.
type FileOp struct {
	Text string
	Kind FileKind
	Path string
	Data string
}

func (FileOp) Family() Family { return FamilyFile }
func (c FileOp) Line() string { return c.Text }

// NetSend sends Data in a single UDP datagram from Src to Dst.
type NetSend struct {
	Text string
	Src  string
	Dst  string
	Data string
}

func (NetSend) Family() Family { return FamilyNet }
func (c NetSend) Line() string { return c.Text }
