// chunktool inspects chunk files and the sqlite index offline.
//
//	chunktool dump data/chunks/chunk_0_4_-1.bin
//	chunktool ls data/chunks
//	chunktool verify data/chunks data/index.db
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"minepath.ai/internal/persistence/indexdb"
	"minepath.ai/internal/world/chunkfile"
)

func main() {
	var cells = flag.Bool("cells", false, "dump: also print present cells")
	flag.Parse()
	args := flag.Args()

	logger := log.New(os.Stderr, "[chunktool] ", 0)

	var err error
	switch {
	case len(args) == 2 && args[0] == "dump":
		err = dump(args[1], *cells)
	case len(args) == 2 && args[0] == "ls":
		err = ls(args[1])
	case len(args) == 3 && args[0] == "verify":
		err = verify(args[1], args[2])
	default:
		fmt.Fprintln(os.Stderr, "usage: chunktool [-cells] dump <file> | ls <dir> | verify <dir> <index.db>")
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("%v", err)
	}
}

func dump(path string, withCells bool) error {
	h, data, err := chunkfile.Read(path)
	if err != nil {
		return err
	}
	present := 0
	for _, v := range data {
		if v != chunkfile.Sentinel {
			present++
		}
	}
	fmt.Printf("%s: size=%dx%dx%d type=%s cells=%d present=%d\n",
		filepath.Base(path), h.SizeX, h.SizeY, h.SizeZ, h.Type, len(data), present)
	if !withCells {
		return nil
	}
	for i, v := range data {
		if v == chunkfile.Sentinel {
			continue
		}
		lz := i % h.SizeZ
		ly := (i / h.SizeZ) % h.SizeY
		lx := i / (h.SizeZ * h.SizeY)
		fmt.Printf("  (%d,%d,%d) = %d\n", lx, ly, lz, v)
	}
	return nil
}

func ls(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		var cx, cy, cz int
		if _, err := fmt.Sscanf(e.Name(), "chunk_%d_%d_%d.bin", &cx, &cy, &cz); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		if err := dump(filepath.Join(dir, n), false); err != nil {
			return err
		}
	}
	fmt.Printf("%d chunk files\n", len(names))
	return nil
}

// verify cross-checks the index rows against the files on disk. Extra
// files are reported but not an error; the index is advisory.
func verify(dir, dbPath string) error {
	idx, err := indexdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	rows, err := idx.Chunks()
	if err != nil {
		return err
	}

	bad := 0
	for _, r := range rows {
		path := filepath.Join(dir, chunkfile.Filename(r.CX, r.CY, r.CZ))
		h, data, err := chunkfile.Read(path)
		if err != nil {
			fmt.Printf("MISSING chunk (%d,%d,%d): %v\n", r.CX, r.CY, r.CZ, err)
			bad++
			continue
		}
		present := 0
		for _, v := range data {
			if v != chunkfile.Sentinel {
				present++
			}
		}
		if present != r.Present {
			fmt.Printf("STALE chunk (%d,%d,%d): file present=%d index present=%d\n", r.CX, r.CY, r.CZ, present, r.Present)
			bad++
			continue
		}
		fmt.Printf("ok chunk (%d,%d,%d) size=%dx%dx%d present=%d\n", r.CX, r.CY, r.CZ, h.SizeX, h.SizeY, h.SizeZ, present)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	indexed := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		indexed[chunkfile.Filename(r.CX, r.CY, r.CZ)] = struct{}{}
	}
	for _, e := range entries {
		var cx, cy, cz int
		if _, err := fmt.Sscanf(e.Name(), "chunk_%d_%d_%d.bin", &cx, &cy, &cz); err != nil {
			continue
		}
		if _, ok := indexed[e.Name()]; !ok {
			fmt.Printf("unindexed file %s\n", e.Name())
		}
	}

	if bad > 0 {
		return fmt.Errorf("%d chunks failed verification", bad)
	}
	fmt.Printf("%d indexed chunks verified\n", len(rows))
	return nil
}
