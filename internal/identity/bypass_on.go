//go:build devauth

package identity

const bypassCompiled = true
