// Package ws holds the shell's two websocket endpoints.
//
// /events streams notifications to UI overlays (status bar, launcher,
// switcher) and accepts kill requests from them. /wm is the window-system
// bridge: it carries window notifications into the router and compositor
// commands back out.
package ws
