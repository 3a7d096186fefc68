// Command gvbackup archives an engine snapshot file into a backup.
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
		source   = flag.String("source", "", "engine snapshot file to back up (required)")
		dest     = flag.String("dest", "", "backup file to write (required)")
		compress = flag.String("compress", "", "compression codec: zstd or lz4")
		encrypt  = flag.String("encrypt", "", "encrypt the backup with this key")
		noVerify = flag.Bool("no-verify", false, "skip checksum verification after writing")
		verbose  = flag.Bool("verbose", false, "enable progress logging")
	)
	flag.Parse()

	if err := run(*source, *dest, *compress, *encrypt, *noVerify, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "gvbackup:", err)
		os.Exit(1)
	}
}

func run(source, dest, compress, encrypt string, noVerify, verbose bool) error {
	if source == "" || dest == "" {
		return fmt.Errorf("--source and --dest are required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if !verbose {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	codec, err := backup.ParseCodec(compress)
	if err != nil {
		return err
	}

	opts := backup.Options{
		Codec:       codec,
		Key:         encrypt,
		VerifyAfter: !noVerify,
	}
	logger.Info("creating backup",
		"source", source, "dest", dest,
		"codec", codec.String(), "encrypted", encrypt != "")

	h, err := backup.Create(source, dest, opts)
	if err != nil {
		return err
	}

	logger.Info("backup written",
		"vectors", h.VectorCount,
		"dimension", h.Dimension,
		"original_bytes", h.OriginalSize,
		"payload_bytes", h.CompressedSize,
		"checksum", h.Checksum)
	return nil
}
