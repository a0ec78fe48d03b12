package robots

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// DocumentMode decides what happens to captures that are not plain text.
type DocumentMode string

const (
	// DocumentModeRaw scans every body as-is.
	DocumentModeRaw DocumentMode = "raw"
	// DocumentModeSkip ignores HTML and JSON captures.
	DocumentModeSkip DocumentMode = "skip"
	// DocumentModeText scans the visible text of HTML captures.
	DocumentModeText DocumentMode = "text"
)

func ParseDocumentMode(s string) (DocumentMode, error) {
	switch mode := DocumentMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case DocumentModeRaw, DocumentModeSkip, DocumentModeText:
		return mode, nil
	case "":
		return DocumentModeRaw, nil
	default:
		return "", fmt.Errorf("unknown document mode %q (want raw, skip or text)", s)
	}
}

type documentKind int

const (
	documentPlain documentKind = iota
	documentHTML
	documentJSON
)

// sniffDocument classifies a capture body by its content. Declared content
// types are ignored since the archive replays whatever the site served.
func sniffDocument(body []byte) documentKind {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return documentPlain
	}
	if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return documentJSON
	}
	if looksLikeHTML(trimmed) {
		return documentHTML
	}
	return documentPlain
}

// looksLikeHTML reports whether the first meaningful token is a doctype or
// one of the document-level tags.
func looksLikeHTML(body []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.DoctypeToken:
			return true
		case html.CommentToken:
			continue
		case html.TextToken:
			if len(bytes.TrimSpace(z.Text())) > 0 {
				return false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html, atom.Head, atom.Body, atom.Title, atom.Meta, atom.Pre:
				return true
			}
			return false
		default:
			return false
		}
	}
}

// decodeCapture converts a capture body to UTF-8. The charset comes from a
// BOM, the Content-Type header or an HTML meta tag; bodies that are not valid
// UTF-8 and declare nothing are read as windows-1252. Undecodable bytes
// become U+FFFD.
func decodeCapture(body []byte, contentType string) []byte {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name != "utf-8" {
		if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
			return decoded
		}
	}
	return bytes.ToValidUTF8(body, []byte("\uFFFD"))
}

// prepareDocument returns the text to scan for a capture, or ok=false when
// the capture must be ignored.
func prepareDocument(body []byte, mode DocumentMode) (text string, ok bool, err error) {
	if mode == DocumentModeRaw || mode == "" {
		return string(body), true, nil
	}

	switch sniffDocument(body) {
	case documentJSON:
		return "", false, nil
	case documentHTML:
		if mode == DocumentModeSkip {
			return "", false, nil
		}
		visible, err := visibleText(bytes.NewReader(body))
		if err != nil {
			return "", false, err
		}
		return visible, true, nil
	default:
		return string(body), true, nil
	}
}

// visibleText extracts the readable text of an HTML capture. Content of
// <pre> blocks wins because the archive wraps raw text captures in one.
func visibleText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	pre := doc.Find("pre")
	if pre.Length() > 0 {
		blocks := make([]string, 0, pre.Length())
		pre.Each(func(_ int, s *goquery.Selection) {
			blocks = append(blocks, s.Text())
		})
		return strings.Join(blocks, "\n"), nil
	}
	return doc.Find("body").Text(), nil
}
