// Package model defines domain data structures shared by the HTTP layer,
// the download pipeline and the CLI: output formats, media info returned by
// the info route, download jobs and their status enum.
package model
