package archive

import (
	"net/mail"
	"regexp"
	"strings"
)

var bareAddrRe = regexp.MustCompile(`[A-Za-z0-9._%+\-=]+@[A-Za-z0-9.\-]+`)

// Address extracts the lowercased e-mail address from a From-style header
// value such as `Jane Doe <jane@example.org>`. Falls back to the first
// address-looking token, then to the trimmed lowercased input.
func Address(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if a, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(a.Address)
	}
	if m := bareAddrRe.FindString(from); m != "" {
		return strings.ToLower(m)
	}
	return strings.ToLower(from)
}

// Domain returns the part after '@' of the sender's address, or "".
func Domain(from string) string {
	addr := Address(from)
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return addr[at+1:]
}
