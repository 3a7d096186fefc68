// Command gvinspect prints the header of a backup file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gigavector/gigavector/backup"
)

type info struct {
	Version     uint32 `json:"version"`
	Created     string `json:"created"`
	Vectors     uint64 `json:"vectors"`
	Dimension   uint64 `json:"dimension"`
	IndexType   string `json:"index_type"`
	Compressed  bool   `json:"compressed"`
	Codec       string `json:"codec"`
	Encrypted   bool   `json:"encrypted"`
	Original    uint64 `json:"original_bytes"`
	PayloadSize uint64 `json:"payload_bytes"`
	Checksum    string `json:"checksum"`
	Verified    *bool  `json:"verified,omitempty"`
}

func main() {
	var (
		asJSON = flag.Bool("json", false, "emit the header as JSON")
		verify = flag.Bool("verify", false, "also verify the backup checksum")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gvinspect [--json] [--verify] <backup-file>")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *asJSON, *verify); err != nil {
		fmt.Fprintln(os.Stderr, "gvinspect:", err)
		os.Exit(1)
	}
}

func run(path string, asJSON, verify bool) error {
	h, err := backup.Inspect(path)
	if err != nil {
		return err
	}

	out := info{
		Version:     h.Version,
		Created:     h.CreatedAt.Format(time.RFC3339),
		Vectors:     h.VectorCount,
		Dimension:   h.Dimension,
		IndexType:   h.IndexType.String(),
		Compressed:  h.Compressed(),
		Codec:       h.Codec().String(),
		Encrypted:   h.Encrypted(),
		Original:    h.OriginalSize,
		PayloadSize: h.CompressedSize,
		Checksum:    h.Checksum,
	}

	var verifyErr error
	if verify {
		verifyErr = backup.Verify(path)
		ok := verifyErr == nil
		out.Verified = &ok
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("Backup %s\n", path)
		fmt.Printf("  Version:    %d\n", out.Version)
		fmt.Printf("  Created:    %s\n", out.Created)
		fmt.Printf("  Vectors:    %d\n", out.Vectors)
		fmt.Printf("  Dimension:  %d\n", out.Dimension)
		fmt.Printf("  Index:      %s\n", out.IndexType)
		fmt.Printf("  Compressed: %v (%s)\n", out.Compressed, out.Codec)
		fmt.Printf("  Encrypted:  %v\n", out.Encrypted)
		fmt.Printf("  Original:   %d bytes\n", out.Original)
		fmt.Printf("  Payload:    %d bytes\n", out.PayloadSize)
		fmt.Printf("  Checksum:   %s\n", out.Checksum)
		if out.Verified != nil {
			fmt.Printf("  Verified:   %v\n", *out.Verified)
		}
	}

	if verifyErr != nil {
		return verifyErr
	}
	return nil
}
