package statemachine

import (
	"fmt"
	"strings"

	"github.com/atlanticdynamic/modectl/internal/fancy"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
)

// Tree renders the states and their outgoing edges. The current state is
// highlighted once the machine is built.
func (m *Machine[K]) Tree() *tree.Tree {
	root := fancy.RootTree(m.name)

	byFrom := make(map[K][]Transition[K], len(m.order))
	for _, tr := range m.Transitions() {
		byFrom[tr.From] = append(byFrom[tr.From], tr)
	}

	for _, key := range m.order {
		label := fancy.StateText(string(key))
		if m.built && key == m.current {
			label = fancy.CurrentStateText(string(key))
		}
		edges := byFrom[key]
		node := fancy.BranchNode(label, fmt.Sprintf("(%d)", len(edges)))
		for _, tr := range edges {
			node.Child(fancy.TransitionText(string(tr.Event), string(tr.To), tr.Guarded, tr.Callbacks))
		}
		root.Child(node)
	}
	return root
}

// Describe returns the transition table, one row per edge in registration
// order, under the machine name.
func (m *Machine[K]) Describe() string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("FROM", "EVENT", "TO", "GUARD", "CALLBACKS")
	for _, tr := range m.Transitions() {
		var guard, callbacks string
		if tr.Guarded {
			guard = "[guarded]"
		}
		switch tr.Callbacks {
		case 0:
		case 1:
			callbacks = "+callback"
		default:
			callbacks = fmt.Sprintf("+%d callbacks", tr.Callbacks)
		}
		t.Row(string(tr.From), tr.Event.String(), string(tr.To), guard, callbacks)
	}

	var b strings.Builder
	b.WriteString(m.name)
	if m.built {
		fmt.Fprintf(&b, " (current: %s)", m.current)
	}
	b.WriteString("\n")
	b.WriteString(t.String())
	return b.String()
}
