package supervisor

import (
	"fmt"
	"regexp"
	"strings"
)

const systemPrompt = "You restructure speech transcripts into readable markdown without changing their meaning."

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Structure and format this transcript.\n\nOriginal transcript:\n")
	b.WriteString(req.Transcript)
	b.WriteString("\n")
	if len(req.Pauses) > 0 {
		parts := make([]string, len(req.Pauses))
		for i, p := range req.Pauses {
			parts[i] = fmt.Sprintf("%.1f", p)
		}
		b.WriteString("\nNatural pauses were detected at these points (in seconds):\n")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	if req.DurationSec > 0 || req.Language != "" || req.Speakers > 0 {
		b.WriteString("\nAdditional context:\n")
		if req.DurationSec > 0 {
			fmt.Fprintf(&b, "- Audio duration: %.1f seconds\n", req.DurationSec)
		}
		if req.Language != "" {
			fmt.Fprintf(&b, "- Language: %s\n", req.Language)
		}
		if req.Speakers > 0 {
			fmt.Fprintf(&b, "- Number of speakers: %d\n", req.Speakers)
		}
	}
	b.WriteString("\nSplit into paragraphs at topic changes and pauses, fix punctuation and capitalization, keep speaker attributions, and answer with markdown only.\n")
	return b.String()
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}

func prepare(req Request, redact bool) Request {
	if redact {
		req.Transcript = redactPII(req.Transcript)
	}
	return req
}
