package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/carbocation/gwasingest/chrom"
	_ "github.com/carbocation/gwasingest/compileinfoprint"
	"github.com/carbocation/gwasingest/pipeline"
	"github.com/carbocation/gwasingest/store"
)

const exitNotFound = 2

func main() {
	var storePath, chromosome string
	var start, end, maxRegion int
	flag.StringVar(&storePath, "store", "", "Path to a normalized store (its .tbi index must sit beside it)")
	flag.StringVar(&chromosome, "chrom", "", "Chromosome")
	flag.IntVar(&start, "start", 0, "1-based first position")
	flag.IntVar(&end, "end", 0, "1-based last position")
	flag.IntVar(&maxRegion, "max-region", pipeline.DefaultMaxRegion, "Widest region that may be requested")
	flag.Parse()

	if storePath == "" || chromosome == "" {
		fmt.Fprintln(os.Stderr, "gwasregion prints the rows of a normalized store that fall within a region.")
		flag.PrintDefaults()
		os.Exit(1)
	}

	region, err := chrom.NewRegion(chromosome, start, end, maxRegion)
	if err != nil {
		log.Fatalln(err)
	}

	variants, err := store.Fetch(storePath, region, maxRegion)
	if errors.Is(err, store.ErrNotFound) {
		log.Println(err)
		os.Exit(exitNotFound)
	} else if err != nil {
		log.Fatalln(err)
	}

	r, err := store.Open(storePath)
	if err != nil {
		log.Fatalln(err)
	}
	withMAF := r.HasMAF()
	r.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	fmt.Fprintln(w, store.Header(withMAF))
	var line []byte
	for _, v := range variants {
		line = store.AppendLine(line[:0], v, withMAF)
		w.Write(line)
	}
}
