// Package main hosts the stabledracor CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into operations
// on one stable DraCor system: copying corpora into the local DraCor API,
// importing repositories and directories, maintaining the manifest, writing
// manifest labels into saved images and emitting compose files. It
// centralizes configuration resolution and logging setup so subcommands only
// translate flags into calls on internal/system.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through a dedicated command or flag here.
package main
