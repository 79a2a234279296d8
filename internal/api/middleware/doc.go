// Package middleware holds the gin middleware shared by the control API.
package middleware
