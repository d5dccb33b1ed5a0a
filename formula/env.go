package formula

import (
	"os"
	"sort"
	"strings"
)

// Env is the environment passed to external tools.
type Env map[string]string

// EnvFromOS returns a copy of the process environment.
func EnvFromOS() Env {
	return ParseEnv(os.Environ())
}

// ParseEnv builds an Env from KEY=VALUE pairs.
func ParseEnv(environ []string) Env {
	env := make(Env, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Clone returns an independent copy of e.
func (e Env) Clone() Env {
	c := make(Env, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// Environ renders e as KEY=VALUE pairs sorted by key.
func (e Env) Environ() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	environ := make([]string, 0, len(keys))
	for _, k := range keys {
		environ = append(environ, k+"="+e[k])
	}
	return environ
}

// Prepend puts dir in front of the list variable key, separated by ':'.
func (e Env) Prepend(key, dir string) {
	if cur, ok := e[key]; ok && cur != "" {
		e[key] = dir + ":" + cur
		return
	}
	e[key] = dir
}
