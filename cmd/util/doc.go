// Package util holds the helpers shared by the pxkv commands: flag setup,
// configuration loading (flags, PXKV_* environment variables and .env files)
// and opening the configured store and session.
package util
