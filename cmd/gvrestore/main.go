// Command gvrestore unpacks a backup into an engine snapshot file.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gigavector/gigavector/backup"
)

func main() {
	var (
		source   = flag.String("source", "", "backup file to restore (required)")
		dest     = flag.String("dest", "", "engine snapshot file to write (required)")
		key      = flag.String("key", "", "decryption key for encrypted backups")
		force    = flag.Bool("force", false, "overwrite the destination if it exists")
		noVerify = flag.Bool("no-verify", false, "skip checksum verification before restoring")
		verbose  = flag.Bool("verbose", false, "enable progress logging")
	)
	flag.Parse()

	if err := run(*source, *dest, *key, *force, *noVerify, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "gvrestore:", err)
		os.Exit(1)
	}
}

func run(source, dest, key string, force, noVerify, verbose bool) error {
	if source == "" || dest == "" {
		return fmt.Errorf("--source and --dest are required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if !verbose {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h, err := backup.Inspect(source)
	if err != nil {
		return err
	}
	logger.Info("restoring backup",
		"source", source, "dest", dest,
		"vectors", h.VectorCount,
		"dimension", h.Dimension,
		"index", h.IndexType.String(),
		"created", h.CreatedAt)

	opts := backup.RestoreOptions{
		Key:            key,
		Overwrite:      force,
		VerifyChecksum: !noVerify,
	}
	if err := backup.Restore(source, dest, opts); err != nil {
		return err
	}

	logger.Info("snapshot restored", "dest", dest)
	return nil
}
