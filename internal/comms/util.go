package comms

import (
	"strings"
	"unicode"
)

// DefaultMaxSegmentLen is the segment size used when the caller passes a
// non-positive limit.
const DefaultMaxSegmentLen = 700

// Fence is the fenced code block delimiter.
const Fence = "```"

const fenceClose = "\n" + Fence

// Split breaks text into ordered segments of at most maxLen characters
// (runes). Each cut prefers the last newline inside the window, then the last
// whitespace, and only then a hard cut. Surrounding whitespace is trimmed at
// every boundary. Fenced code blocks that straddle a cut are closed at the end
// of one segment and reopened at the start of the next.
//
// Empty or whitespace-only input yields no segments.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxSegmentLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= maxLen && CountFences(text)%2 == 0 {
		return []string{text}
	}

	window := maxLen
	if strings.Contains(text, Fence) {
		reserve := fenceReserve(text)
		if reserve < maxLen/2 {
			window = maxLen - reserve
		} else {
			// Headers too long to carry; reopen with a bare fence instead.
			window = maxLen - len(fenceClose) - len(Fence) - 1
			if window < 1 {
				window = 1
			}
		}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= window {
			chunks = append(chunks, string(runes))
			break
		}
		cut := cutPoint(runes, window)
		chunk := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = trimLeftSpace(runes[cut:])
	}

	return balanceFences(chunks, maxLen)
}

// BalanceFences closes any fenced block left open at the end of a chunk and
// reopens it, with the same header, at the start of the following chunk. The
// last chunk is closed if the block never ends. Balanced input is returned
// unchanged, so BalanceFences(BalanceFences(x)) == BalanceFences(x).
func BalanceFences(chunks []string) []string {
	return balanceFences(chunks, 0)
}

// balanceFences drops the language tag from a reopening header when it would
// push the chunk past maxLen. maxLen <= 0 disables the check.
func balanceFences(chunks []string, maxLen int) []string {
	out := make([]string, len(chunks))
	copy(out, chunks)

	for i := range out {
		if CountFences(out[i])%2 == 0 {
			continue
		}
		header := openFenceHeader(out[i])
		out[i] += fenceClose
		if i+1 < len(out) {
			if maxLen > 0 && runeLen(out[i+1])+runeLen(header)+1 > maxLen-len(fenceClose) {
				header = Fence
			}
			out[i+1] = header + "\n" + out[i+1]
		}
	}
	return out
}

// CountFences returns the number of fence markers in s.
func CountFences(s string) int {
	return strings.Count(s, Fence)
}

// cutPoint returns the rune index at which the first window runes of r
// should be cut. A hard cut never lands inside a run of backticks.
func cutPoint(r []rune, window int) int {
	for i := window - 1; i > 0; i-- {
		if r[i] == '\n' {
			return i
		}
	}
	for i := window - 1; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	cut := window
	for cut > 1 && r[cut-1] == '`' && r[cut] == '`' {
		cut--
	}
	return cut
}

// openFenceHeader returns the line that opened the last unterminated block in
// chunk, e.g. "```go". Falls back to a bare fence.
func openFenceHeader(chunk string) string {
	header := Fence
	open := false
	for _, line := range strings.Split(chunk, "\n") {
		n := CountFences(line)
		if n == 0 {
			continue
		}
		if n%2 == 1 {
			open = !open
			if open {
				header = strings.TrimSpace(line[strings.LastIndex(line, Fence):])
			}
		}
	}
	if strings.ContainsAny(header[len(Fence):], "` ") {
		return Fence
	}
	return header
}

// fenceReserve is the room a chunk needs for a closing fence plus the longest
// reopening header found in text.
func fenceReserve(text string) int {
	longest := len(Fence)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, Fence) && runeLen(line) > longest {
			longest = runeLen(line)
		}
	}
	return len(fenceClose) + longest + 1
}

func trimLeftSpace(r []rune) []rune {
	i := 0
	for i < len(r) && unicode.IsSpace(r[i]) {
		i++
	}
	return r[i:]
}

func runeLen(s string) int {
	return len([]rune(s))
}

// TruncateText truncates text to maxLen characters, adding "..." if truncated.
func TruncateText(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
