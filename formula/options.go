package formula

// Value is the value of a command-line option. An empty Value marks an
// option that is present without a value.
type Value string

// Plus joins v and s with a single space. No space is inserted when v is
// empty.
func (v Value) Plus(s string) Value {
	if v == "" {
		return Value(s)
	}
	return v + " " + Value(s)
}

// Rules selects how option names and values are combined into arguments.
type Rules int

const (
	// MakeRules renders NAME=VALUE, or NAME alone when the value is empty.
	MakeRules Rules = iota
	// CMakeRules renders -DNAME=VALUE, or -DNAME= when the value is empty.
	CMakeRules
)

// Options is an insertion-ordered set of named command-line options.
type Options struct {
	names  []string
	values map[string]Value
}

// NewOptions returns an empty option set.
func NewOptions() *Options {
	return &Options{values: make(map[string]Value)}
}

// Set assigns value to name. An existing option keeps its position.
func (o *Options) Set(name, value string) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}
	o.values[name] = Value(value)
}

// Get returns the value of name. A missing option reads as empty.
func (o *Options) Get(name string) Value {
	return o.values[name]
}

// Has reports whether name was set.
func (o *Options) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Append joins value to the current value of name, creating the option when
// it is missing.
func (o *Options) Append(name, value string) {
	o.Set(name, string(o.Get(name).Plus(value)))
}

// Delete removes name.
func (o *Options) Delete(name string) {
	if _, ok := o.values[name]; !ok {
		return
	}
	delete(o.values, name)
	for i, n := range o.names {
		if n == name {
			o.names = append(o.names[:i], o.names[i+1:]...)
			break
		}
	}
}

// Len returns the number of options.
func (o *Options) Len() int { return len(o.names) }

// Names returns option names in insertion order.
func (o *Options) Names() []string {
	return append([]string(nil), o.names...)
}

// Args renders the options as command-line arguments in insertion order.
func (o *Options) Args(rules Rules) []string {
	args := make([]string, 0, len(o.names))
	for _, name := range o.names {
		value := o.values[name]
		switch rules {
		case CMakeRules:
			args = append(args, "-D"+name+"="+string(value))
		default:
			if value == "" {
				args = append(args, name)
			} else {
				args = append(args, name+"="+string(value))
			}
		}
	}
	return args
}
