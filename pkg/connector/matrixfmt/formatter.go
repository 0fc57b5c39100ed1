// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package matrixfmt converts Matrix HTML to tomsg plain text.
//
// The conversion is a single streaming pass over the input: elements are
// dispatched to handlers as their tags open, and no document tree is ever
// built, so memory is bounded by the deepest open-element stack rather than
// the message size. Mentions (matrix.to anchors) are resolved to display
// names through caller-supplied resolvers, typically backed by the bridge's
// identity maps.
package matrixfmt

import (
	"strings"

	"golang.org/x/net/html"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/mautrix-tomsg/pkg/connector/matrixto"
)

// UserResolver maps a mentioned Matrix user ID to a tomsg-side display
// string. The boolean reports whether the user is known.
type UserResolver interface {
	ResolveUser(userID id.UserID) (string, bool)
}

// UserResolverFunc adapts a function to the UserResolver interface.
type UserResolverFunc func(userID id.UserID) (string, bool)

func (f UserResolverFunc) ResolveUser(userID id.UserID) (string, bool) {
	return f(userID)
}

// UserMap is a UserResolver backed by a plain map.
type UserMap map[id.UserID]string

func (m UserMap) ResolveUser(userID id.UserID) (string, bool) {
	name, ok := m[userID]
	return name, ok
}

// RoomResolver maps a mentioned room alias to a tomsg-side display string.
type RoomResolver interface {
	ResolveRoom(alias id.RoomAlias) (string, bool)
}

// RoomResolverFunc adapts a function to the RoomResolver interface.
type RoomResolverFunc func(alias id.RoomAlias) (string, bool)

func (f RoomResolverFunc) ResolveRoom(alias id.RoomAlias) (string, bool) {
	return f(alias)
}

// RoomMap is a RoomResolver backed by a plain map.
type RoomMap map[id.RoomAlias]string

func (m RoomMap) ResolveRoom(alias id.RoomAlias) (string, bool) {
	name, ok := m[alias]
	return name, ok
}

// ElementHandler decides the fate of one element. A registered handler fully
// owns its element: the default unwrap/anchor logic does not run for it.
type ElementHandler interface {
	HandleElement(el *Element)
}

// ElementHandlerFunc adapts a function to the ElementHandler interface.
type ElementHandlerFunc func(el *Element)

func (f ElementHandlerFunc) HandleElement(el *Element) {
	f(el)
}

type fate int

const (
	fateUnwrap fate = iota
	fateRemove
	fateReplace
)

// Element is a just-opened element being rewritten. Handlers inspect the tag
// and attributes and pick exactly one fate for it; without any call the
// element is unwrapped (tag dropped, children kept).
type Element struct {
	tag   string
	attrs []html.Attribute

	fate        fate
	replacement string
	prefix      string
	suffix      string
}

// TagName returns the lower-cased tag name.
func (el *Element) TagName() string {
	return el.tag
}

// Attr returns the value of the named attribute.
func (el *Element) Attr(name string) (string, bool) {
	for _, attr := range el.attrs {
		if attr.Key == name {
			return attr.Val, true
		}
	}
	return "", false
}

// Remove drops the element together with all of its content.
func (el *Element) Remove() {
	el.fate = fateRemove
}

// RemoveKeepContent drops the tag but keeps its child content. This is the
// default fate.
func (el *Element) RemoveKeepContent() {
	el.fate = fateUnwrap
}

// ReplaceWith drops the element and its content and emits text in its place.
// The text is caller-controlled and written verbatim.
func (el *Element) ReplaceWith(text string) {
	el.fate = fateReplace
	el.replacement = text
}

// Prepend emits text before the element's content.
func (el *Element) Prepend(text string) {
	el.prefix = text + el.prefix
}

// Append emits text after the element's content.
func (el *Element) Append(text string) {
	el.suffix += text
}

// Converter holds the per-conversion configuration: the two mention
// resolvers and the custom element handler table, keyed by tag name. The
// zero value converts by stripping all markup.
type Converter struct {
	Users    UserResolver
	Rooms    RoomResolver
	Elements map[string]ElementHandler
}

// Void elements never carry content, so they get no stack frame.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Convert rewrites the Matrix HTML input into tomsg plain text. It always
// produces output for well-formed input; a single unresolvable or malformed
// mention never aborts the conversion.
func (c *Converter) Convert(input string) string {
	z := html.NewTokenizer(strings.NewReader(input))
	var out strings.Builder

	type frame struct {
		tag    string
		suffix string
	}
	var stack []frame

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out.String()
		case html.TextToken:
			out.WriteString(z.Token().Data)
		case html.CommentToken, html.DoctypeToken:
			// dropped
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			el := &Element{tag: tok.Data, attrs: tok.Attr}
			c.dispatch(el)

			hasContent := tt == html.StartTagToken && !voidElements[tok.Data]
			switch el.fate {
			case fateReplace:
				out.WriteString(el.replacement)
				if hasContent {
					skipElement(z, tok.Data)
				}
			case fateRemove:
				if hasContent {
					skipElement(z, tok.Data)
				}
			default:
				out.WriteString(el.prefix)
				if hasContent {
					stack = append(stack, frame{tag: tok.Data, suffix: el.suffix})
				} else {
					out.WriteString(el.suffix)
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].tag != tok.Data {
					continue
				}
				// Frames above the match were left open by the input;
				// closing the outer tag closes them too.
				for j := len(stack) - 1; j >= i; j-- {
					out.WriteString(stack[j].suffix)
				}
				stack = stack[:i]
				break
			}
		}
	}
}

// dispatch picks the element's fate: a registered handler wins, anchors get
// the mention logic, everything else is unwrapped.
func (c *Converter) dispatch(el *Element) {
	if handler, ok := c.Elements[el.tag]; ok {
		handler.HandleElement(el)
		return
	}
	if el.tag == "a" {
		c.defaultAnchor(el)
	}
}

// defaultAnchor resolves matrix.to mention anchors and renders everything
// else as [text](href). An href whose payload is not a well-formed mention
// identifier counts as a grammar mismatch and falls through to the link
// rendering rather than failing the conversion.
func (c *Converter) defaultAnchor(el *Element) {
	href, ok := el.Attr("href")
	if !ok {
		return
	}

	if payload, found := strings.CutPrefix(href, matrixto.BaseURL); found && payload != "" {
		switch payload[0] {
		case '@':
			userID := id.UserID(payload)
			if _, _, err := userID.Parse(); err == nil && c.Users != nil {
				if name, ok := c.Users.ResolveUser(userID); ok {
					el.ReplaceWith(name)
					return
				}
			}
		case '#':
			if validAlias(payload) && c.Rooms != nil {
				if name, ok := c.Rooms.ResolveRoom(id.RoomAlias(payload)); ok {
					el.ReplaceWith(name)
					return
				}
			}
		}
	}

	el.Prepend("[")
	el.Append("](" + href + ")")
}

// validAlias checks the #localpart:server shape of a room alias.
func validAlias(alias string) bool {
	rest, ok := strings.CutPrefix(alias, "#")
	if !ok {
		return false
	}
	localpart, server, ok := strings.Cut(rest, ":")
	return ok && localpart != "" && server != ""
}

// skipElement consumes tokens up to and including the end tag that closes
// the current element, counting same-name nesting.
func skipElement(z *html.Tokenizer, tag string) {
	depth := 1
	for depth > 0 {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				depth--
			}
		}
	}
}
