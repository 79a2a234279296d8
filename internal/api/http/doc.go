// Package http is the shell's control API.
//
// Overlays and tools use it to start and kill applications, toggle the
// launcher, switcher and keyboard, read the compositor state and change
// animation options. Handlers never touch compositor state directly; they
// run on the compositor loop through Loop.Call.
package http
