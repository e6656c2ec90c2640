// Package daemon coordinates the long-running Carousel process.
//
// It wires configuration, the session store, the conversion pipeline, and
// the janitor into a single lifecycle with flock-based locking to prevent
// multiple instances, and serves the HTTP API that accepts uploads and
// hands back slide images and archives.
//
// Keep orchestration logic here: conversion steps, session bookkeeping, and
// archive streaming live in their own packages while the daemon focuses on
// startup, shutdown, and request translation.
package daemon
