// Package platform contains OS integration and external tooling glue:
// executable lookup, temporary file lifecycle, filename sanitizing, URL
// rules, parsing of yt-dlp JSON output and the native playlist fallback.
package platform
