package vm

import "sort"

// Action is the behavior behind one opcode. Exec mutates the machine state
// and reports whether execution should continue; returning false halts the
// engine normally. A non-nil error aborts the run.
type Action interface {
	Exec(s *State, arg Value) (bool, error)
}

// ActionFunc adapts an ordinary function to the Action interface.
type ActionFunc func(s *State, arg Value) (bool, error)

// Exec calls f(s, arg).
func (f ActionFunc) Exec(s *State, arg Value) (bool, error) {
	return f(s, arg)
}

type registryEntry struct {
	name   string
	action Action
}

// Registry maps instruction names to dense opcode ids and ids to actions.
//
// The table is append-only: ids are handed out sequentially and never
// reassigned. Registering a name twice rebinds the name to the newer id;
// the older id keeps resolving to its own entry.
//
// A Registry is owned by one machine and is not safe for concurrent
// registration.
type Registry struct {
	byName map[string]OpID
	byID   []registryEntry
	docs   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]OpID),
		byID:   make([]registryEntry, 0, 16),
		docs:   make(map[string]string),
	}
}

// Register adds an instruction and returns its opcode id. It panics on an
// empty name or a nil action.
func (r *Registry) Register(name string, action Action) OpID {
	if name == "" {
		panic("vm: empty instruction name")
	}
	if action == nil {
		panic("vm: nil action for instruction " + name)
	}

	id := OpID(len(r.byID))
	r.byID = append(r.byID, registryEntry{name: name, action: action})
	r.byName[name] = id
	return id
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(name string, fn func(s *State, arg Value) (bool, error)) OpID {
	return r.Register(name, ActionFunc(fn))
}

// Lookup returns the id currently bound to name.
func (r *Registry) Lookup(name string) (OpID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the name registered under id.
func (r *Registry) Name(id OpID) (string, bool) {
	if id < 0 || int(id) >= len(r.byID) {
		return "", false
	}
	return r.byID[id].name, true
}

// Action returns the action registered under id.
func (r *Registry) Action(id OpID) (Action, bool) {
	if id < 0 || int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id].action, true
}

// Len returns the number of ids handed out so far.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Names returns the names currently bound in the name table, in id order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.byName[names[i]] < r.byName[names[j]]
	})
	return names
}

// Describe attaches a one-line description to an instruction name. Used by
// tooling (hover, listings); it has no effect on assembly or execution.
func (r *Registry) Describe(name, doc string) {
	r.docs[name] = doc
}

// Doc returns the description attached with Describe, or "".
func (r *Registry) Doc(name string) string {
	return r.docs[name]
}
