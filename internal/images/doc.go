// Package images reads and writes the labels of OCI image tarballs.
//
// A committed system image carries its manifest as flat labels in the image
// config. The functions here load a tarball produced by `docker save` (or any
// go-containerregistry writer), replace the label set, and write a new
// tarball under a new tag. Image layers are carried over untouched.
package images
