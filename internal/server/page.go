package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SurfaceID is the element id of the drawing surface on the measurement page.
const SurfaceID = "canvas"

// ErrNoSurface is returned by CheckPage when the page lacks the drawing surface.
var ErrNoSurface = errors.New("measurement page has no <canvas id=\"" + SurfaceID + "\"> element")

// CheckPage parses index.html of page and verifies it exposes the drawing
// surface the measurement routine attaches to.
func CheckPage(page fs.FS) error {
	f, err := page.Open("index.html")
	if err != nil {
		return fmt.Errorf("open measurement page: %w", err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return fmt.Errorf("parse measurement page: %w", err)
	}
	if findSurface(doc) == nil {
		return ErrNoSurface
	}
	return nil
}

// findSurface walks the node tree depth-first for the canvas element.
func findSurface(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Canvas {
		for _, attr := range n.Attr {
			if strings.EqualFold(attr.Key, "id") && attr.Val == SurfaceID {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSurface(c); found != nil {
			return found
		}
	}
	return nil
}
