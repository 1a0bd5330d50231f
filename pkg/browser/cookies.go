package browser

import (
	"encoding/json"
	"fmt"
	"os"

	errs "fbharvest/pkg/errors"

	"github.com/playwright-community/playwright-go"
)

// Cookie is one entry of an exported browser cookie file
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// LoadCookies reads a JSON cookie export into playwright cookies
func LoadCookies(path string) ([]playwright.OptionalCookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "load cookies", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "load cookies", fmt.Errorf("parse %s: %w", path, err))
	}

	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		out = append(out, c.ToPlaywright())
	}
	return out, nil
}

// ToPlaywright converts the cookie for BrowserContext.AddCookies
func (c Cookie) ToPlaywright() playwright.OptionalCookie {
	pc := playwright.OptionalCookie{
		Name:  c.Name,
		Value: c.Value,
	}
	if c.Domain != "" {
		pc.Domain = playwright.String(c.Domain)
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	pc.Path = playwright.String(path)

	if c.Expires > 0 {
		pc.Expires = playwright.Float(c.Expires)
	}
	if c.HTTPOnly {
		pc.HttpOnly = playwright.Bool(true)
	}
	if c.Secure {
		pc.Secure = playwright.Bool(true)
	}

	switch c.SameSite {
	case "Lax", "lax":
		pc.SameSite = playwright.SameSiteAttributeLax
	case "Strict", "strict":
		pc.SameSite = playwright.SameSiteAttributeStrict
	case "None", "none", "no_restriction":
		pc.SameSite = playwright.SameSiteAttributeNone
	}

	return pc
}
