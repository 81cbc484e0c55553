// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package session

import (
	"fmt"
	"sync"
)

// FieldObjectRegistry is a concrete, in-process FieldsRegistry. The real
// fields registry is an external collaborator; this implementation
// exists so this module's own tests and cmd/sessiond demo have a working
// registry to resolve field expressions and hash/equal pairs against,
// without pulling in the rest of the capture pipeline.
//
// It is append-only during startup and read-only during steady state:
// Resolve/RegisterObject/Define are expected to run single-threaded
// during wiring, but the mutex makes concurrent reads from multiple
// packet workers safe regardless.
type FieldObjectRegistry struct {
	mu        sync.RWMutex
	next      FieldPos
	byExpr    map[string]FieldDescriptor
	objects   map[FieldPos]hashEqualPair
	ruleFlags map[FieldPos]bool
}

// NewFieldObjectRegistry constructs an empty registry. Field positions
// start at 1 so the zero value of FieldPos can mean "unresolved".
func NewFieldObjectRegistry() *FieldObjectRegistry {
	return &FieldObjectRegistry{
		next:      1,
		byExpr:    make(map[string]FieldDescriptor),
		objects:   make(map[FieldPos]hashEqualPair),
		ruleFlags: make(map[FieldPos]bool),
	}
}

func (f *FieldObjectRegistry) allocate() FieldPos {
	pos := f.next
	f.next++
	return pos
}

// DefineScalar registers an ordinary scalar/array/set/map field and
// returns its position. Tests and cmd/sessiond use this directly; the
// rule loader uses Resolve against whatever has already been defined.
func (f *FieldObjectRegistry) DefineScalar(name string, kind FieldKind, description string) FieldPos {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.byExpr[name]; ok {
		return d.Pos
	}
	pos := f.allocate()
	f.byExpr[name] = FieldDescriptor{Pos: pos, Name: name, Kind: kind, Description: description}
	return pos
}

func (f *FieldObjectRegistry) Resolve(expr string) (FieldDescriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.byExpr[expr]
	return d, ok
}

func (f *FieldObjectRegistry) RegisterObject(name, description string, hash func(any) uint64, equal func(a, b any) bool) FieldPos {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.byExpr[name]; ok {
		return d.Pos
	}
	pos := f.allocate()
	f.byExpr[name] = FieldDescriptor{Pos: pos, Name: name, Kind: KindObject, Description: description}
	f.objects[pos] = hashEqualPair{hash: hash, equal: equal}
	return pos
}

func (f *FieldObjectRegistry) Define(group, kind, name, description, expression string, flags int) FieldPos {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := fmt.Sprintf("%s.%s", group, name)
	if d, ok := f.byExpr[full]; ok {
		return d.Pos
	}
	pos := f.allocate()
	f.byExpr[full] = FieldDescriptor{Pos: pos, Name: full, Kind: fieldKindFromRegistryKind(kind), Description: description}
	return pos
}

func fieldKindFromRegistryKind(kind string) FieldKind {
	switch kind {
	case "integer":
		return KindInt
	case "float":
		return KindFloat
	default:
		return KindString
	}
}

func (f *FieldObjectRegistry) SetRuleEnabled(pos FieldPos) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ruleFlags[pos] = true
}

func (f *FieldObjectRegistry) RuleEnabled(pos FieldPos) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ruleFlags[pos]
}

// hashEqualFor returns the hash/equal pair registered for an object field.
// BasicSession.AddObject does not consult it: each BasicSession receives
// its pair through RegisterObjectField.
func (f *FieldObjectRegistry) hashEqualFor(pos FieldPos) (hashEqualPair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.objects[pos]
	return p, ok
}
