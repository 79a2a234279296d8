package types

import (
	"strings"
)

// AppFlags declares the capabilities and UI role of an application
type AppFlags uint32

const (
	AppNone             AppFlags = 0
	AppNoMainWindow     AppFlags = 1 << 0  // Application draws into a surface instead of a main window
	AppSplashWindow     AppFlags = 1 << 1  // Application opens a splash window first
	AppAllowGeometry    AppFlags = 1 << 2  // Application may place and size its own windows
	AppNonBlocking      AppFlags = 1 << 3  // Surface is not blocked while hidden
	AppMultiple         AppFlags = 1 << 8  // Several instances may run at once
	AppNeedsClear       AppFlags = 1 << 9  // Background is cleared on every update
	AppNeedsBlending    AppFlags = 1 << 10 // Windows are blended by the compositor
	AppAutoStart        AppFlags = 1 << 11 // Started when the shell comes up
	AppUsesBack         AppFlags = 1 << 12 // Application handles the back key
	AppVisibilityNotify AppFlags = 1 << 13 // Application wants visibility feedback
	AppStatusBar        AppFlags = 1 << 16
	AppOSK              AppFlags = 1 << 17
	AppHome             AppFlags = 1 << 18
	AppSystem           AppFlags = 1 << 19 // Never evicted, never listed in the switcher
)

// appFlagTokens maps descriptor tokens to flags. Both the short descriptor
// spelling and the legacy APP_* spelling are accepted.
var appFlagTokens = map[string]AppFlags{
	"multi":                AppMultiple,
	"no-main-window":       AppNoMainWindow,
	"splash":               AppSplashWindow,
	"allow-geometry":       AppAllowGeometry,
	"needs-clear":          AppNeedsClear,
	"needs-blending":       AppNeedsBlending,
	"system":               AppSystem,
	"home":                 AppHome | AppSystem,
	"osk":                  AppOSK,
	"status-bar":           AppStatusBar | AppSystem,
	"auto-start":           AppAutoStart,
	"uses-back":            AppUsesBack,
	"vis-notify":           AppVisibilityNotify,
	"non-blocking-surface": AppNonBlocking,

	"APP_ALLOW_MULTIPLE":      AppMultiple,
	"APP_NO_MAINWINDOW":       AppNoMainWindow,
	"APP_SPLASH_WINDOW":       AppSplashWindow,
	"APP_ALLOW_WINDOW_CONFIG": AppAllowGeometry,
	"APP_NEEDS_CLEAR":         AppNeedsClear,
	"APP_NEEDS_BLENDING":      AppNeedsBlending,
	"APP_SYSTEM":              AppSystem,
	"APP_HOME":                AppHome | AppSystem,
	"APP_OSK":                 AppOSK,
	"APP_STATUSBAR":           AppStatusBar | AppSystem,
	"APP_AUTO_START":          AppAutoStart,
	"APP_USE_BACK":            AppUsesBack,
	"APP_VIS_NOTIFY":          AppVisibilityNotify,
	"APP_SURFACE_DONTBLOCK":   AppNonBlocking,
}

// ParseAppFlags parses a space or comma separated token list. Unknown tokens
// are returned so the caller can warn about them.
func ParseAppFlags(tokens []string) (AppFlags, []string) {
	var flags AppFlags
	var unknown []string
	for _, tok := range splitTokens(tokens) {
		if tok == "none" || tok == "APP_NONE" {
			flags = AppNone
			continue
		}
		if f, ok := appFlagTokens[tok]; ok {
			flags |= f
		} else {
			unknown = append(unknown, tok)
		}
	}
	return flags, unknown
}

// Has reports whether all bits of f are set
func (a AppFlags) Has(f AppFlags) bool {
	return a&f == f
}

// DepFlags declares the hardware an application depends on
type DepFlags uint32

const (
	DepNone    DepFlags = 0
	Dep3D      DepFlags = 1 << 0
	DepRemote  DepFlags = 1 << 1
	DepTouch   DepFlags = 1 << 2
	DepNetwork DepFlags = 1 << 3
	DepPointer DepFlags = 1 << 4
)

var depFlagTokens = map[string]DepFlags{
	"3d":      Dep3D,
	"remote":  DepRemote,
	"touch":   DepTouch,
	"pointer": DepPointer,
	"network": DepNetwork,

	"DEP_3D":      Dep3D,
	"DEP_RC":      DepRemote,
	"DEP_TOUCH":   DepTouch,
	"DEP_NETWORK": DepNetwork,
}

// ParseDepFlags parses dependency tokens the same way as ParseAppFlags
func ParseDepFlags(tokens []string) (DepFlags, []string) {
	var flags DepFlags
	var unknown []string
	for _, tok := range splitTokens(tokens) {
		if tok == "none" || tok == "DEP_NONE" {
			flags = DepNone
			continue
		}
		if f, ok := depFlagTokens[tok]; ok {
			flags |= f
		} else {
			unknown = append(unknown, tok)
		}
	}
	return flags, unknown
}

// Has reports whether all bits of f are set
func (d DepFlags) Has(f DepFlags) bool {
	return d&f == f
}

func splitTokens(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.FieldsFunc(s, func(r rune) bool {
			return r == ' ' || r == ',' || r == '\t' || r == '\n'
		})...)
	}
	return out
}

// AppDefinition is an immutable catalog entry describing how to launch an
// application and which role it plays in the shell
type AppDefinition struct {
	ID       uint32   `json:"id"`
	Name     string   `json:"name"`
	Author   string   `json:"author,omitempty"`
	Licence  string   `json:"licence,omitempty"`
	Category string   `json:"category"`
	Version  int      `json:"version"`
	Icon     string   `json:"icon,omitempty"`
	Path     string   `json:"path"`
	Args     string   `json:"args,omitempty"`
	Flags    AppFlags `json:"flags"`
	Deps     DepFlags `json:"deps"`
}

// Argv returns the argument vector for exec: the resolved path followed by the
// whitespace separated argument string
func (d *AppDefinition) Argv() []string {
	return append([]string{d.Path}, strings.Fields(d.Args)...)
}

// IsSystem reports whether the application is exempt from eviction and hidden
// from the switcher
func (d *AppDefinition) IsSystem() bool {
	return d.Flags.Has(AppSystem)
}

// Role returns the compositor role derived from the flags
func (d *AppDefinition) Role() Role {
	switch {
	case d.Flags.Has(AppStatusBar):
		return RoleStatusBar
	case d.Flags.Has(AppOSK):
		return RoleOSK
	case d.Flags.Has(AppHome):
		return RoleHome
	case d.Flags.Has(AppSystem):
		return RoleSystem
	default:
		return RoleDefault
	}
}

// Role is the compositing category of an application
type Role int

const (
	RoleDefault Role = iota
	RoleStatusBar
	RoleOSK
	RoleHome
	RoleSystem
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case RoleStatusBar:
		return "status-bar"
	case RoleOSK:
		return "osk"
	case RoleHome:
		return "home"
	case RoleSystem:
		return "system"
	default:
		return "default"
	}
}
