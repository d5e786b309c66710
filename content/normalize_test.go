package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareForStrictPairing_EmptyHistoryYieldsPlaceholder(t *testing.T) {
	out := PrepareForStrictPairing(nil)
	assert.Len(t, out, 1)
	assert.Equal(t, SpeakerHuman, out[0].Speaker)
	assert.Equal(t, TextBlock{Text: "Hello"}, out[0].Blocks[0])
}

func TestPrepareForStrictPairing_OrphanToolResponseDroppedAndPlaceholderPrepended(t *testing.T) {
	history := []IContent{
		{Speaker: SpeakerTool, Blocks: []Block{ToolResponseBlock{CallID: "hist_tool_xyz", Result: "x"}}},
	}

	out := PrepareForStrictPairing(history)

	assert.Len(t, out, 1)
	assert.Equal(t, SpeakerHuman, out[0].Speaker)
	assert.Equal(t, TextBlock{Text: "Hello"}, out[0].Blocks[0])
}

func TestPrepareForStrictPairing_LeadingAIPrependsContinuePlaceholder(t *testing.T) {
	history := []IContent{
		{Speaker: SpeakerAI, Blocks: []Block{TextBlock{Text: "hi"}}},
	}

	out := PrepareForStrictPairing(history)

	require := assert.New(t)
	require.Len(out, 2)
	require.Equal(SpeakerHuman, out[0].Speaker)
	require.Equal(TextBlock{Text: "Continue the conversation"}, out[0].Blocks[0])
	require.Equal(SpeakerAI, out[1].Speaker)
}

func TestPruneOrphanToolResponses_KeepsPairedResponses(t *testing.T) {
	history := []IContent{
		{Speaker: SpeakerHuman, Blocks: []Block{TextBlock{Text: "hi"}}},
		{Speaker: SpeakerAI, Blocks: []Block{ToolCallBlock{ID: "hist_tool_abc", Name: "x", Parameters: map[string]any{"n": 1}}}},
		{Speaker: SpeakerTool, Blocks: []Block{ToolResponseBlock{CallID: "hist_tool_abc", Result: "ok"}}},
	}

	out := PruneOrphanToolResponses(history)

	assert.Len(t, out, 3)
	assert.True(t, out[2].HasToolResponse())
}

func TestPruneOrphanToolResponses_DropsEmptiedItem(t *testing.T) {
	history := []IContent{
		{Speaker: SpeakerTool, Blocks: []Block{ToolResponseBlock{CallID: "hist_tool_missing", Result: "x"}}},
	}

	out := PruneOrphanToolResponses(history)

	assert.Empty(t, out)
}

func TestMergeConsecutiveToolResponses(t *testing.T) {
	history := []IContent{
		{Speaker: SpeakerTool, Blocks: []Block{ToolResponseBlock{CallID: "a"}}},
		{Speaker: SpeakerTool, Blocks: []Block{ToolResponseBlock{CallID: "b"}}},
	}

	out := MergeConsecutiveToolResponses(history)

	assert.Len(t, out, 1)
	assert.Len(t, out[0].Blocks, 2)
}

func TestIContent_ToolCallIDsAndResponseCallIDs(t *testing.T) {
	item := IContent{Speaker: SpeakerAI, Blocks: []Block{
		ToolCallBlock{ID: "a"}, TextBlock{Text: "x"}, ToolCallBlock{ID: "b"},
	}}
	assert.Equal(t, []string{"a", "b"}, item.ToolCallIDs())

	resp := IContent{Speaker: SpeakerTool, Blocks: []Block{ToolResponseBlock{CallID: "a"}}}
	assert.Equal(t, []string{"a"}, resp.ToolResponseCallIDs())
}
