// fingerprint.go derives stable grouping hashes for sink records.

package errmon

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const fingerprintFrames = 3

// Fingerprint hashes the stable parts of a record: operation, error type and
// the first three function names of its stack trace. Messages, timestamps,
// line numbers and addresses do not affect the result.
func Fingerprint(r Record) string {
	parts := []string{r.Operation, r.ErrorType}
	parts = append(parts, stackFrames(r.StackTrace)...)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:16])
}

var (
	// "main.doSomething" or "github.com/x/y/pkg.(*T).Method"
	funcNamePattern = regexp.MustCompile(`^([a-zA-Z0-9_./()*\-]+\.[a-zA-Z0-9_]+)`)

	memAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	offsetPattern  = regexp.MustCompile(`\+0x[0-9a-fA-F]+`)
)

// stackFrames returns up to three function names from a goroutine dump,
// skipping the goroutine header and file:line lines.
func stackFrames(trace string) []string {
	if trace == "" {
		return nil
	}

	var frames []string
	for _, line := range strings.Split(trace, "\n") {
		if strings.HasPrefix(line, "\t") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "goroutine ") || strings.HasPrefix(line, "/") {
			continue
		}

		line = offsetPattern.ReplaceAllString(line, "")
		line = memAddrPattern.ReplaceAllString(line, "")
		if idx := strings.LastIndex(line, "("); idx > 0 && strings.HasSuffix(line, ")") {
			line = line[:idx]
		}

		if match := funcNamePattern.FindString(strings.TrimSpace(line)); match != "" {
			frames = append(frames, match)
			if len(frames) >= fingerprintFrames {
				break
			}
		}
	}
	return frames
}
