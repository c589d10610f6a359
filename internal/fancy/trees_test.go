package fancy_test

import (
	"testing"

	"github.com/atlanticdynamic/modectl/internal/fancy"
	"github.com/stretchr/testify/assert"
)

func TestTree(t *testing.T) {
	t.Parallel()

	tree := fancy.Tree()
	assert.NotNil(t, tree)

	tree.Root("Root Node")
	child := tree.Child("Child Node")
	child.Child("Grandchild")

	treeString := tree.String()
	assert.Contains(t, treeString, "Root Node")
	assert.Contains(t, treeString, "Child Node")
	assert.Contains(t, treeString, "Grandchild")
}

func TestBranchNode(t *testing.T) {
	t.Parallel()

	branchNode := fancy.BranchNode("States", "(3)")
	assert.NotNil(t, branchNode)

	treeString := branchNode.String()
	assert.Contains(t, treeString, "States")
	assert.Contains(t, treeString, "(3)")
}

func TestTransitionText(t *testing.T) {
	t.Parallel()

	plain := fancy.TransitionText("DONE", "STAND", false, 0)
	assert.Contains(t, plain, "DONE")
	assert.Contains(t, plain, "STAND")
	assert.NotContains(t, plain, "[guarded]")

	decorated := fancy.TransitionText("REQUEST_LOAD_BEARING", "LOAD_BEARING", true, 1)
	assert.Contains(t, decorated, "[guarded]")
	assert.Contains(t, decorated, "+callback")
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		max    int
		expect string
	}{
		{"shorter than max", "Short string", 20, "Short string"},
		{"exactly max", "12345", 5, "12345"},
		{"longer than max", "This string is too long", 10, "This st..."},
		{"tiny max", "abcdef", 2, "ab"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, fancy.TruncateString(tc.input, tc.max))
		})
	}
}

func TestStyleHelpers(t *testing.T) {
	t.Parallel()

	for _, render := range []func(string) string{
		fancy.StateText,
		fancy.CurrentStateText,
		fancy.EventText,
		fancy.GuardText,
		fancy.ControllerText,
		fancy.ValidText,
		fancy.ErrorText,
		fancy.PathText,
		fancy.SummaryText,
		fancy.CountText,
	} {
		assert.Contains(t, render("sample"), "sample")
	}
}
