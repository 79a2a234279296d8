// Package pressure watches system memory and evicts background instances
// when it runs low.
//
// Monitor polls /proc/meminfo and reports level changes. Governor receives
// levels on the compositor loop and picks at most one victim per rise.
package pressure
