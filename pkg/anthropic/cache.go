package anthropic

// BuildCachedSystemBlocks returns text as one system block with a 1h
// prompt-cache breakpoint. Empty text yields no blocks.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "1h"}}}
}
