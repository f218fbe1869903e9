package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"guestvault/internal/domain/vault"
)

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writePlain(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeFileTable(w io.Writer, files []vault.File) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tSHA256\tUPLOADED\tDOWNLOADS")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			f.ID, f.OriginalFilename, formatBytes(f.Size), f.SHA256[:min(12, len(f.SHA256))],
			f.UploadedAt.UTC().Format(time.DateTime), f.DownloadCount)
	}
	return tw.Flush()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
