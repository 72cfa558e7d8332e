package sandbox

import "strings"

// ExtractCode returns the body of the fenced code blocks in input, with the fence lines
// (and any language tag) removed and surrounding whitespace trimmed. Several blocks are
// joined with a newline. Input without a complete fence pair is returned verbatim.
func ExtractCode(input string) string {
	lines := strings.Split(input, "\n")
	var code []string
	fences := 0
	inBlock := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fences++
			inBlock = fences%2 == 1
			continue
		}
		if inBlock {
			code = append(code, line)
		}
	}
	if fences == 0 || fences%2 == 1 {
		return input
	}
	return strings.TrimSpace(strings.Join(code, "\n"))
}
