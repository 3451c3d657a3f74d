package idk

import "sort"

// Vars is the variable table of a Machine. Entries are created by the first
// write; the zero Vars is empty and ready to use.
type Vars struct {
	m map[string]Value
}

// Get returns the value of the named variable and whether it has been set.
func (v *Vars) Get(name string) (Value, bool) {
	val, ok := v.m[name]
	return val, ok
}

func (v *Vars) Set(name string, val Value) {
	if v.m == nil {
		v.m = make(map[string]Value)
	}
	v.m[name] = val
}

// Names returns the names of all set variables in sorted order.
func (v *Vars) Names() []string {
	names := make([]string, 0, len(v.m))
	for n := range v.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (v *Vars) Len() int { return len(v.m) }
