// Package testsupport holds helpers shared by package tests: temp-dir
// configs, generated input files, and an in-process daemon.
package testsupport
