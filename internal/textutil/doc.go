// Package textutil turns free-form names, such as the system name from the
// configuration, into strings that are safe to use as file names.
package textutil
