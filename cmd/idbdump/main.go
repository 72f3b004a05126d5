// Package main provides a command-line utility to open an IDA Pro
// database and print a short summary of what was decoded. It exists as
// a smoke test for the idb facade, not a full-featured CLI.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/goidb/idb"
	"github.com/goidb/idb/internal/arch"
)

func main() {
	strict := flag.Bool("strict", false, "fail on any recoverable format deviation instead of skipping it")
	verbose := flag.Bool("v", false, "log container/section diagnostics to stderr")
	address := flag.Uint64("address", 0, "print AddressInfo for this address after opening")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: idbdump [flags] <file.i64|file.idb>")
		flag.PrintDefaults()
		return
	}

	opts := idb.OpenOptions{Strict: *strict}
	if *verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	db32, db64, err := idb.Open(args[0], opts)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}

	switch {
	case db64 != nil:
		dump(db64, *address)
	case db32 != nil:
		dump(db32, uint32(*address))
	}
}

func dump[K arch.Kind](db *idb.DB[K], address K) {
	info := db.Info()
	fmt.Printf("idainfo version: %d\n", info.Version())

	segments, err := db.Segments()
	if err != nil {
		log.Printf("segments: %v", err)
	} else {
		fmt.Printf("segments: %d\n", len(segments))
	}

	functions, err := db.Functions()
	if err != nil {
		log.Printf("functions: %v", err)
	} else {
		fmt.Printf("functions: %d\n", len(functions))
	}

	entries, err := db.EntryPoints()
	if err != nil {
		log.Printf("entry points: %v", err)
	} else {
		fmt.Printf("entry points: %d\n", len(entries))
	}

	if address == 0 {
		return
	}
	ai := db.AddressInfo(address)
	fmt.Printf("address 0x%x:\n", uint64(address))
	if ai.HasLabel {
		fmt.Printf("  label: %s\n", ai.Label)
	}
	if ai.HasComment {
		fmt.Printf("  comment: %s\n", ai.Comment)
	}
	if ai.HasRepeatable {
		fmt.Printf("  repeatable comment: %s\n", ai.CommentRepeatable)
	}
	if ai.Type != nil {
		fmt.Printf("  has decoded type info\n")
	}
}
