package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy pulls one field value out of a parsed post. It returns "" when
// the markup it looks for is absent.
type Strategy func(post *goquery.Selection) string

// firstOf evaluates strategies in priority order and returns the first
// non-empty value.
func firstOf(post *goquery.Selection, strategies []Strategy) string {
	for _, s := range strategies {
		if v := strings.TrimSpace(s(post)); v != "" {
			return v
		}
	}
	return ""
}

const (
	messageContainerSelector = `div[data-ad-rendering-role="story_message"], div[data-ad-preview="message"], div[data-ad-comet-preview="message"]`
	genericTextSelector      = `div[dir="auto"]:not([class*=" "]):not(:has(button)):not(:has(a[role="button"]))`
	interactiveSelector      = `button[role="button"], a[role="button"]`
)

var backgroundImagePattern = regexp.MustCompile(`background-image:\s*url\(["']?([^"')]*)["']?\)`)

// textStrategies locate the post body
var textStrategies = []Strategy{
	messageText,
	selectText(genericTextSelector),
}

var authorNameStrategies = []Strategy{
	selectText(`h2 strong, h2 a[role="link"] strong, h3 strong, h3 a[role="link"] strong, a[aria-label][href*="/user/"] > strong, a[aria-label][href*="/profile.php"] > strong`),
	selectText(`h2[id^="«r"] strong object div`),
	selectText(`a[href*="/groups/"][href*="/user/"] span, a[href*="/profile.php"] span, span > strong > a[role="link"]`),
}

var authorPictureStrategies = []Strategy{
	svgImageHref(`div:first-child svg image`),
	selectAttr(`div:first-child img[alt*="profile picture"], div:first-child img[data-imgperflogname*="profile"]`, "src"),
	svgImageHref(`div[role="button"] svg image`),
}

// imageStrategies run in priority order: a later selector is tried only when
// no earlier one matches, wherever the matches sit in the document.
var imageStrategies = []Strategy{
	selectAttr(`img.x168nmei`, "src"),
	selectAttr(`div[data-imgperflogname="MediaGridPhoto"] img`, "src"),
	backgroundImage(`div[style*="background-image"]`),
}

var postedAtStrategies = []Strategy{
	selectAttr(`abbr[title]`, "title"),
	selectText(`a[href*="/posts/"] span[data-lexical-text="true"]`),
}

// messageText reads the structured message container. Direct children that
// hold an interactive control are UI chrome and are skipped; the remaining
// fragments are joined by newlines.
func messageText(post *goquery.Selection) string {
	container := post.Find(messageContainerSelector).First()
	if container.Length() == 0 {
		return ""
	}

	var parts []string
	container.Children().Each(func(_ int, child *goquery.Selection) {
		if child.Find(interactiveSelector).Length() > 0 {
			return
		}
		if t := joinedText(child); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	return joinedText(container)
}

func selectText(selector string) Strategy {
	return func(post *goquery.Selection) string {
		return joinedText(post.Find(selector).First())
	}
}

func selectAttr(selector, attr string) Strategy {
	return func(post *goquery.Selection) string {
		v, _ := post.Find(selector).First().Attr(attr)
		return v
	}
}

// svgImageHref reads an SVG <image> reference. The HTML parser splits
// "xlink:href" into a namespace and a key, so the bare key is checked too.
func svgImageHref(selector string) Strategy {
	return func(post *goquery.Selection) string {
		node := post.Find(selector).First()
		if node.Length() == 0 {
			return ""
		}
		for _, a := range node.Nodes[0].Attr {
			if a.Key == "xlink:href" || (a.Key == "href" && (a.Namespace == "xlink" || a.Namespace == "")) {
				return a.Val
			}
		}
		return ""
	}
}

func backgroundImage(selector string) Strategy {
	return func(post *goquery.Selection) string {
		var url string
		post.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			style, _ := s.Attr("style")
			if m := backgroundImagePattern.FindStringSubmatch(style); m != nil {
				url = m[1]
				return false
			}
			return true
		})
		return url
	}
}

// joinedText concatenates the trimmed text nodes under s with single spaces
func joinedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
