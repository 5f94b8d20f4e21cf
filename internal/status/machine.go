package status

import (
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned for any status literal outside the enumeration.
// Stored data carrying such a value is corrupt and is never coerced.
var ErrUnknownStatus = errors.New("unknown status")

// machine is a linear progression with error branches that can be entered
// from any non-terminal state.
type machine[S ~string] struct {
	progression []S
	branches    []S
	next        map[S]S
	known       map[S]bool
	terminal    map[S]bool
}

func newMachine[S ~string](progression []S, branches []S) machine[S] {
	m := machine[S]{
		progression: progression,
		branches:    branches,
		next:        make(map[S]S, len(progression)),
		known:       make(map[S]bool, len(progression)+len(branches)),
		terminal:    make(map[S]bool, len(branches)+1),
	}
	for i, s := range progression {
		m.known[s] = true
		if i+1 < len(progression) {
			m.next[s] = progression[i+1]
		}
	}
	m.terminal[progression[len(progression)-1]] = true
	for _, b := range branches {
		m.known[b] = true
		m.terminal[b] = true
	}
	return m
}

func (m machine[S]) parse(s string) (S, error) {
	v := S(s)
	if !m.known[v] {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return v, nil
}

func (m machine[S]) nextOf(cur S) (S, bool, error) {
	if !m.known[cur] {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownStatus, string(cur))
	}
	n, ok := m.next[cur]
	return n, ok, nil
}

func (m machine[S]) isForward(from, to S) (bool, error) {
	if !m.known[from] {
		return false, fmt.Errorf("%w: %q", ErrUnknownStatus, string(from))
	}
	if !m.known[to] {
		return false, fmt.Errorf("%w: %q", ErrUnknownStatus, string(to))
	}
	if m.terminal[from] {
		return false, nil
	}
	if m.next[from] == to {
		return true, nil
	}
	for _, b := range m.branches {
		if b == to {
			return true, nil
		}
	}
	return false, nil
}

func (m machine[S]) allowedFrom(from S) []S {
	if !m.known[from] || m.terminal[from] {
		return nil
	}
	out := []S{m.next[from]}
	return append(out, m.branches...)
}
