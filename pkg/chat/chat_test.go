package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMentions_ExtractsEveryKindInOrder(t *testing.T) {
	content := "ping @[Bot](agent:agent-1) and cc @[Alice](user:user-2), see @[spec](file:doc-3)"

	mentions := ParseMentions(content)
	require.Len(t, mentions, 3)

	assert.Equal(t, Mention{DisplayName: "Bot", Kind: "agent", ID: "agent-1"}, mentions[0])
	assert.Equal(t, Mention{DisplayName: "Alice", Kind: "user", ID: "user-2"}, mentions[1])
	assert.Equal(t, Mention{DisplayName: "spec", Kind: "file", ID: "doc-3"}, mentions[2])
}

func TestParseMentions_NoMatchesReturnsEmpty(t *testing.T) {
	mentions := ParseMentions("just a plain message, nothing to see here")
	assert.Empty(t, mentions)
}

func TestParseMentions_DuplicateMentionFiresOncePerOccurrence(t *testing.T) {
	content := "@[Bot](agent:agent-1) then again @[Bot](agent:agent-1)"
	mentions := ParseMentions(content)
	assert.Len(t, mentions, 2)
}

func TestParseMentions_IgnoresUnknownKind(t *testing.T) {
	mentions := ParseMentions("@[Thing](widget:1)")
	assert.Empty(t, mentions)
}

func TestParseMentions_RejectsMissingCloseParen(t *testing.T) {
	mentions := ParseMentions("@[Bot](agent:agent-1")
	assert.Empty(t, mentions)
}
