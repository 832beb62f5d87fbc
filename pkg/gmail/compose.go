package gmail

import (
	"encoding/base64"
	"mime"
	"strings"
)

// Compose builds a UTF-8 text/plain RFC 2822 message and returns it
// base64url-encoded, ready for the Gmail "raw" field.
func Compose(to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", ErrNoRecipient
	}
	if body == "" {
		return "", ErrEmptyBody
	}

	var b strings.Builder
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("To: " + sanitizeHeader(to) + "\r\n")
	b.WriteString("Subject: " + mime.BEncoding.Encode("utf-8", sanitizeHeader(subject)) + "\r\n")
	b.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	for len(encoded) > 76 {
		b.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded + "\r\n")

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

// sanitizeHeader drops line breaks so a value cannot inject headers.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
}
