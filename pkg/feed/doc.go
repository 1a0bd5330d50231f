// Package feed drives the infinite-scroll group feed.
//
// A Controller opens the group with chronological sorting, verifies that the
// session was not bounced to a login or checkpoint page, and then advances
// the feed one viewport step at a time. Each step waits a bounded time for
// more posts to render and closes any interstitial overlay it finds.
//
// Structural operations (navigation, feed discovery, scrolling) run under the
// retry policy. Probing individual elements does not: a detached element or a
// missing control is expected while the feed re-renders.
package feed
