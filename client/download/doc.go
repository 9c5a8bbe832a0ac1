// Package download saves binary results to disk with optional checksum
// validation and progress reporting.
//
// [Save] checks the data first, then writes into a temporary file
// alongside the destination and renames it into place on success:
//
//	path, err := download.Save(ctx, data, "report.csv", dir, logger,
//		download.WithChecksum(sha256.New, want))
//
// Most callers use [github.com/adamwoolhether/fetcher/client.Client.DownloadFile],
// which passes a blob result through Save and re-exports the options.
package download
