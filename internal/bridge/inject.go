package bridge

import (
	"bytes"
	"fmt"
	"strings"
)

// scriptTag wraps the agent script in a tag pointing at this daemon so the
// page loads it over HTTP instead of carrying the payload inline.
func scriptTag(baseURL string) []byte {
	return []byte(fmt.Sprintf(`<script src="%s/overchat.js" defer></script>`, baseURL))
}

// InjectAgent adds the agent script tag to an HTML document. Injection points
// are tried in order of preference; a document with no recognizable structure
// gets the tag prepended.
func InjectAgent(body []byte, baseURL string) []byte {
	tag := scriptTag(baseURL)

	if idx := bytes.Index(body, []byte("</head>")); idx != -1 {
		return splice(body, idx, tag)
	}
	if idx := bytes.Index(body, []byte("<head>")); idx != -1 {
		return splice(body, idx+len("<head>"), tag)
	}
	for _, open := range []string{"<body", "<html"} {
		idx := bytes.Index(body, []byte(open))
		if idx == -1 {
			continue
		}
		end := bytes.Index(body[idx:], []byte(">"))
		if end == -1 {
			continue
		}
		return splice(body, idx+end+1, tag)
	}

	result := make([]byte, 0, len(body)+len(tag))
	result = append(result, tag...)
	return append(result, body...)
}

// ShouldInject reports whether a response with this content type is an HTML
// document worth injecting into.
func ShouldInject(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func splice(body []byte, at int, ins []byte) []byte {
	result := make([]byte, 0, len(body)+len(ins))
	result = append(result, body[:at]...)
	result = append(result, ins...)
	return append(result, body[at:]...)
}
