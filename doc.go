// Package firefoxdp is a high level WebDriver BiDi client that drives Firefox
// for running the browser's built-in machine learning and translation
// features.
//
// firefoxdp launches (or attaches to) a Firefox process, opens a BiDi session
// and runs actions against two browsing contexts: the visible tab, used for
// navigation and page-scoped commands, and the privileged chrome window,
// where a bundled script dispatches named commands to Firefox internals.
package firefoxdp
