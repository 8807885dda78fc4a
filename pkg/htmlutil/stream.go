package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

type TagKind int

const (
	TAG_OPEN TagKind = iota
	TAG_TEXT
	TAG_CLOSE
)

// Tag is a single event of the tag stream.
type Tag struct {
	Kind TagKind
	// Name is the lowercase tag name, empty for text.
	Name  string
	Attrs map[string]string
	// Text is the unescaped text for TAG_TEXT events.
	Text string
}

func (t Tag) Attr(key string) (string, bool) {
	v, ok := t.Attrs[key]
	return v, ok
}

// Stream tokenizes an html document into open/text/close events. Self-closing tags
// produce an open event immediately followed by a close event. Comments and doctypes
// are dropped. Malformed markup never fails, the tokenizer simply stops at EOF.
func Stream(document string) []Tag {
	tokenizer := html.NewTokenizer(strings.NewReader(document))

	var tags []Tag
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a read error, either way what was read so far is still useful
			return tags
		case html.TextToken:
			tags = append(tags, Tag{Kind: TAG_TEXT, Text: string(tokenizer.Text())})
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			tag := Tag{
				Kind:  TAG_OPEN,
				Name:  strings.ToLower(token.Data),
				Attrs: make(map[string]string, len(token.Attr)),
			}
			for _, a := range token.Attr {
				tag.Attrs[strings.ToLower(a.Key)] = a.Val
			}
			tags = append(tags, tag)
			if tt == html.SelfClosingTagToken {
				tags = append(tags, Tag{Kind: TAG_CLOSE, Name: tag.Name})
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tags = append(tags, Tag{Kind: TAG_CLOSE, Name: strings.ToLower(string(name))})
		}
	}
}
