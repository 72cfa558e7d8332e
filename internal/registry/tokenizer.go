package registry

// Tokenizer counts the tokens a model would see for text.
type Tokenizer func(text string) int

// ApproxTokenizer estimates one token per four bytes, rounding up.
func ApproxTokenizer(text string) int {
	return (len(text) + 3) / 4
}
