package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServePublicFiles exposes the upload root under prefix. Dot-prefixed segments are never
// served, which keeps in-flight temp files out of reach.
func ServePublicFiles(app *fiber.App, prefix, root string) {
	app.Static(prefix, root, fiber.Static{
		Next: func(c *fiber.Ctx) bool {
			return hiddenPath(c.Path())
		},
	})
}

func hiddenPath(p string) bool {
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	for _, seg := range strings.Split(strings.ReplaceAll(p, `\`, "/"), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
