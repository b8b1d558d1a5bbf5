package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/gwasingest"
	_ "github.com/carbocation/gwasingest/compileinfoprint"
	"google.golang.org/api/option"
)

func main() {
	var input, credentials string
	flag.StringVar(&input, "input", "", "Path (local or gs://) to the summary statistics file")
	flag.StringVar(&credentials, "credentials", "", "Optional Google service account credentials file for gs:// inputs")
	flag.Parse()

	if input == "" {
		fmt.Fprintln(os.Stderr, "gwassniff reports the compression, delimiter and column layout it detects in a summary statistics file.")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()

	var client *storage.Client
	if strings.HasPrefix(input, "gs://") {
		var opts []option.ClientOption
		if credentials != "" {
			opts = append(opts, option.WithCredentialsFile(credentials))
		}

		var err error
		client, err = storage.NewClient(ctx, opts...)
		if err != nil {
			log.Fatalln(err)
		}
		defer client.Close()
	}

	format, err := gwasingest.Sniff(ctx, input, client)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Printf("compression\t%s\n", format.DataType)
	fmt.Printf("delimiter\t%q\n", format.Delimiter)
	fmt.Printf("header\t%s\n", strings.Join(format.Header, " "))

	if format.Layout == nil {
		fmt.Println("layout\tunrecognized")
		return
	}

	name := format.LayoutName
	if name == "" {
		name = "guessed"
	}
	fmt.Printf("layout\t%s\n", name)

	l := format.Layout
	fmt.Printf("is_log_pval\t%v\n", l.IsLogPvalue)

	header := l.ExpectedHeader()
	cols := make([]int, 0, len(header))
	for col := range header {
		cols = append(cols, col)
	}
	sort.Ints(cols)
	for _, col := range cols {
		// 1-based, as in the serialized options
		fmt.Printf("column\t%d\t%s\n", col+1, header[col])
	}
	if l.HasMAF() {
		fmt.Printf("maf_col\t%d\n", l.ColMAF+1)
	}
}
