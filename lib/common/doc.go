// Package common holds the pieces shared by the library packages and the CLI:
// the client configuration and the logger factory.
//
// Logging goes through dragonboat's logger facade. Packages obtain their logger
// once with logger.GetLogger("<name>") and InitLoggers swaps in a factory that
// writes every message through a single logrus instance, tagged with the
// package name.
package common
