// Package download implements the download pipeline built on top of yt-dlp
// (via github.com/lrstanley/go-ytdlp): resolving a title, downloading into a
// temporary file, verifying the result and handing it to the HTTP layer as
// an Artifact that removes itself once streamed. It also keeps a registry of
// recent jobs and limits how many downloads run in parallel.
package download
