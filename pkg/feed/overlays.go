package feed

import (
	"fbharvest/pkg/browser"
	errs "fbharvest/pkg/errors"
)

// OverlaySelectors match interstitials that block the feed
var OverlaySelectors = []string{
	"div[data-testid='dialog']",
	"div[role='dialog']",
	"div[aria-label*='Save your login info']",
	"div[aria-label*='Turn on notifications']",
	"div[aria-label='View site information']",
}

// DismissSelectors match controls inside an overlay that close it, tried in order
var DismissSelectors = []string{
	"xpath=.//button[contains(text(), 'Not Now') or contains(text(), 'Not now')]",
	"a[aria-label='Close']",
	"button[aria-label='Close']",
	"button[aria-label*='close']",
	"div[role='button'][aria-label='Close']",
	"xpath=.//button[contains(text(), 'Close')]",
	"xpath=.//button[contains(text(), 'Dismiss')]",
	"xpath=.//button[contains(text(), 'Later')]",
	"xpath=.//div[@role='button'][contains(text(), 'Not Now') or contains(text(), 'Later')]",
	"i[aria-label='Close dialog']",
}

// DismissOverlays closes the first visible overlay it can. It never fails:
// a stale overlay is taken as already gone.
func (c *Controller) DismissOverlays() bool {
	for _, sel := range OverlaySelectors {
		overlays, err := c.session.QueryAll(sel)
		if err != nil {
			continue
		}
		for _, overlay := range overlays {
			visible, err := overlay.Visible()
			if err != nil || !visible {
				continue
			}
			if c.dismiss(sel, overlay) {
				return true
			}
		}
	}
	return false
}

func (c *Controller) dismiss(overlaySel string, overlay browser.Element) bool {
	for _, btnSel := range DismissSelectors {
		buttons, err := overlay.QueryAll(btnSel)
		if err != nil {
			if errs.Is(err, errs.ErrorTypeStale) {
				return true
			}
			continue
		}
		for _, b := range buttons {
			visible, err := b.Visible()
			if err != nil || !visible {
				continue
			}
			err = b.Click()
			switch {
			case err == nil:
				c.logger.DebugWithFields("Dismissed overlay", map[string]interface{}{
					"overlay": overlaySel,
					"control": btnSel,
				})
				return true
			case errs.Is(err, errs.ErrorTypeStale):
				return true
			default:
				c.logger.DebugWithFields("Overlay dismiss click failed", map[string]interface{}{
					"overlay": overlaySel,
					"control": btnSel,
					"error":   err.Error(),
				})
			}
		}
	}
	return false
}
