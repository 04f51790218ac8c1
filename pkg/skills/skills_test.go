package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
)

func TestParse_ExtractsFrontMatterAndBody(t *testing.T) {
	raw := "---\nname: triage\ndescription: Triage incoming tickets\ntools:\n  - search_kb\n---\nRead the ticket and decide severity.\n"

	sk, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "triage", sk.Name)
	assert.Equal(t, "Triage incoming tickets", sk.Description)
	assert.Equal(t, []string{"search_kb"}, sk.Tools)
	assert.Equal(t, "Read the ticket and decide severity.", sk.Body)
}

func TestParse_UnionsFrontMatterToolsWithFencedToolsBlock(t *testing.T) {
	raw := "---\nname: triage\ndescription: d\ntools:\n  - search_kb\n---\nBody text.\n\n```tools\nsearch_kb\nsend_message\n```\n"

	sk, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_kb", "send_message"}, sk.Tools)
}

func TestParse_MissingFrontMatterIsInvalidInput(t *testing.T) {
	_, err := Parse("just a body, no front matter")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestParse_MissingNameIsInvalidInput(t *testing.T) {
	_, err := Parse("---\ndescription: d\n---\nbody\n")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestParse_ToolsBlockDedupesAgainstFrontMatter(t *testing.T) {
	raw := "---\nname: t\ndescription: d\ntools:\n  - search_kb\n---\n```tools\nsearch_kb\n```\n"

	sk, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_kb"}, sk.Tools)
}

func TestRender_IncludesNameDescriptionAndBody(t *testing.T) {
	sk := &Skill{FrontMatter: FrontMatter{Name: "triage", Description: "Triage tickets"}, Body: "Do the thing."}
	out := sk.Render()
	assert.Contains(t, out, "triage")
	assert.Contains(t, out, "Triage tickets")
	assert.Contains(t, out, "Do the thing.")
}
