// Package browser drives a headless Chromium through chromedp for form based marketplace sign-ups.
//
// [Browser] is the small surface the registrar needs: navigation, element presence, filling,
// clicking, attribute reads, value injection and visibility waits. [Chrome] implements it on top
// of one chromedp tab; every call takes the caller's context, so cancellation and deadlines reach
// the running browser action. [Fake] is an in-memory page used by tests.
package browser
