package fancy

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// Tree returns a new tree with common styling applied
func Tree() *tree.Tree {
	t := tree.New()
	t.EnumeratorStyle(BranchStyle)
	t.Enumerator(tree.RoundedEnumerator)
	return t
}

// RootTree returns a styled tree whose root is title
func RootTree(title string) *tree.Tree {
	return Tree().Root(RootStyle.Render(title))
}

// BranchNode creates a styled section header node
func BranchNode(title string, count string) *tree.Tree {
	return tree.New().Root(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			HeaderStyle.Render(title),
			" ",
			InfoStyle.Render(count),
		),
	)
}

// TransitionText renders one edge of a transition table
func TransitionText(event, to string, guarded bool, callbacks int) string {
	parts := []string{EventText(event), BranchStyle.Render(" -> "), StateText(to)}
	if guarded {
		parts = append(parts, " ", GuardText("[guarded]"))
	}
	if callbacks > 0 {
		parts = append(parts, " ", InfoStyle.Render("+callback"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// TruncateString truncates a string if it exceeds maxLength
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
