package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Content types accepted for knowledge documents.
const (
	TypeText = "text"
	TypeHTML = "html"
	TypePDF  = "pdf"
)

const maxExtractedBytes = 2 << 20

// ErrEmptyDocument is returned when extraction yields no text.
var ErrEmptyDocument = errors.New("document has no text")

// Extract returns the title (possibly empty) and plain text of raw content.
// PDF content is base64 encoded.
func Extract(contentType, raw string) (title, body string, err error) {
	switch contentType {
	case TypeText, "":
		body = raw
	case TypeHTML:
		title, body, err = extractHTML(strings.NewReader(raw))
	case TypePDF:
		body, err = extractPDF(raw)
	default:
		return "", "", fmt.Errorf("unsupported content type %q", contentType)
	}
	if err != nil {
		return "", "", err
	}

	body = normalizeSpace(body)
	if body == "" {
		return "", "", ErrEmptyDocument
	}
	if len(body) > maxExtractedBytes {
		body = strings.ToValidUTF8(body[:maxExtractedBytes], "")
	}
	return strings.TrimSpace(title), body, nil
}

func extractHTML(r io.Reader) (string, string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w", err)
	}

	var title string
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = n.FirstChild.Data
				}
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			sb.WriteByte('\n')
		}
	}
	walk(doc)
	return title, sb.String(), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
		return true
	}
	return false
}

func extractPDF(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("decoding pdf: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	b, err := io.ReadAll(io.LimitReader(text, maxExtractedBytes))
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(b), nil
}

// normalizeSpace collapses runs of blanks within lines and drops empty lines.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
