package content

// PrepareForStrictPairing applies the §4.B and §8 boundary rules that every
// strict-pairing provider (Anthropic-style, Responses-style) needs before
// translating a history to wire messages:
//
//  1. Drop leading tool items (orphaned at conversation start).
//  2. Prune any ToolResponseBlock whose CallID was never emitted as a
//     ToolCallBlock.ID earlier in the history, dropping items that become
//     empty as a result.
//  3. If the history is empty, return a single placeholder human item.
//  4. If the first remaining item is not speaker=human, prepend a
//     placeholder human item.
//
// The input slice is never mutated; PrepareForStrictPairing returns a new
// slice.
func PrepareForStrictPairing(history []IContent) []IContent {
	pruned := PruneOrphanToolResponses(history)

	if len(pruned) == 0 {
		return []IContent{TextOnly(SpeakerHuman, "Hello")}
	}

	if pruned[0].Speaker != SpeakerHuman {
		placeholder := TextOnly(SpeakerHuman, "Continue the conversation")
		out := make([]IContent, 0, len(pruned)+1)
		out = append(out, placeholder)
		out = append(out, pruned...)
		return out
	}

	return pruned
}

// PruneOrphanToolResponses removes ToolResponseBlocks whose CallID was
// never emitted as an earlier ToolCallBlock.ID, dropping items that become
// empty as a result (including leading tool items, whose CallIDs by
// definition can never have a prior match).
func PruneOrphanToolResponses(history []IContent) []IContent {
	emitted := map[string]bool{}
	out := make([]IContent, 0, len(history))

	for _, item := range history {
		for _, id := range item.ToolCallIDs() {
			emitted[id] = true
		}

		if item.Speaker != SpeakerTool {
			out = append(out, item)
			continue
		}

		kept := make([]Block, 0, len(item.Blocks))
		for _, b := range item.Blocks {
			if tr, ok := b.(ToolResponseBlock); ok {
				if !emitted[tr.CallID] {
					continue // orphan: its call was never seen
				}
			}
			kept = append(kept, b)
		}
		if len(kept) > 0 {
			out = append(out, IContent{Speaker: item.Speaker, Blocks: kept, Metadata: item.Metadata})
		}
	}

	return out
}

// MergeConsecutiveToolResponses merges adjacent speaker=tool items into a
// single item carrying the union of their ToolResponseBlocks, matching the
// wire requirement (§4.B) that strict-pairing providers receive one
// user-role payload per batch of tool results rather than one per call.
func MergeConsecutiveToolResponses(history []IContent) []IContent {
	out := make([]IContent, 0, len(history))
	for _, item := range history {
		if item.Speaker == SpeakerTool && len(out) > 0 && out[len(out)-1].Speaker == SpeakerTool {
			last := &out[len(out)-1]
			last.Blocks = append(last.Blocks, item.Blocks...)
			continue
		}
		out = append(out, item)
	}
	return out
}
