// Package fileutil holds small file system helpers shared by the state
// store and the artifact writers.
package fileutil
