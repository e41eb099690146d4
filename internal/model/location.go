package model

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// MethodID is a stable handle for a fully qualified function signature. IDs are
// only meaningful relative to the Interner that issued them.
type MethodID uint32

// Location identifies a single program point of one subject snapshot.
type Location struct {
	Method MethodID
	Line   int
}

// String renders the location in probe-id form ("<method>#<line>").
func (l Location) String() string {
	return strconv.FormatUint(uint64(l.Method), 10) + "#" + strconv.Itoa(l.Line)
}

// Less orders locations by method id, then line.
func (l Location) Less(other Location) bool {
	if l.Method != other.Method {
		return l.Method < other.Method
	}

	return l.Line < other.Line
}

// ParseLocation parses the "<method>#<line>" form produced by String.
func ParseLocation(s string) (Location, error) {
	methodPart, linePart, ok := strings.Cut(s, "#")
	if !ok {
		return Location{}, fmt.Errorf("%w: location %q", ErrMalformedInput, s)
	}

	method, err := strconv.ParseUint(methodPart, 10, 32)
	if err != nil {
		return Location{}, fmt.Errorf("%w: method id in %q", ErrMalformedInput, s)
	}

	line, err := strconv.Atoi(linePart)
	if err != nil || line <= 0 {
		return Location{}, fmt.Errorf("%w: line in %q", ErrMalformedInput, s)
	}

	return Location{Method: MethodID(method), Line: line}, nil
}

type methodEntry struct {
	signature string
	file      Path
}

// Interner maps function signatures to MethodIDs and back. One Interner is owned
// by a pipeline run; it is safe for concurrent use.
type Interner struct {
	mu      sync.RWMutex
	ids     map[string]MethodID
	entries []methodEntry
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	in := &Interner{}
	in.Reset()

	return in
}

// Reset drops every interned signature. IDs issued before Reset must not be reused.
func (in *Interner) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.ids = make(map[string]MethodID)
	// id 0 is reserved so a zero Location never aliases a real method.
	in.entries = []methodEntry{{}}
}

// Intern returns the id for signature, registering it with its source file on
// first use.
func (in *Interner) Intern(signature string, file Path) MethodID {
	in.mu.RLock()
	id, ok := in.ids[signature]
	in.mu.RUnlock()

	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if id, ok := in.ids[signature]; ok {
		return id
	}

	id = MethodID(len(in.entries))
	in.entries = append(in.entries, methodEntry{signature: signature, file: file})
	in.ids[signature] = id

	return id
}

// Signature returns the signature registered for id.
func (in *Interner) Signature(id MethodID) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if id == 0 || int(id) >= len(in.entries) {
		return "", false
	}

	return in.entries[id].signature, true
}

// File returns the source file registered for id.
func (in *Interner) File(id MethodID) (Path, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if id == 0 || int(id) >= len(in.entries) {
		return "", false
	}

	return in.entries[id].file, true
}

// Len returns the number of interned signatures.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()

	return len(in.entries) - 1
}
