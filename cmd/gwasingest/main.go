package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/gwasingest"
	_ "github.com/carbocation/gwasingest/compileinfoprint"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/pipeline"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const (
	exitSucceeded  = 0
	exitFailed     = 1
	exitIncomplete = 3
)

func main() {
	var input, outdir, layout, optionsPath, configPath, credentials, logLevel string
	flag.StringVar(&input, "input", "", "Path (local or gs://) to the summary statistics file")
	flag.StringVar(&outdir, "outdir", "", "Folder that will receive the normalized store, the artifacts and the log")
	flag.StringVar(&layout, "layout", "", fmt.Sprintf("Named column layout. One of: %s. If neither -layout nor -options is set, the layout is guessed from the header.", parser.LayoutNames()))
	flag.StringVar(&optionsPath, "options", "", "YAML file with the parser options (chrom_col, pos_col, ...)")
	flag.StringVar(&configPath, "config", "", "Optional YAML file with pipeline settings. GWAS_* environment variables override it.")
	flag.StringVar(&credentials, "credentials", "", "Optional Google service account credentials file for gs:// inputs")
	flag.StringVar(&logLevel, "log-level", "info", "Diagnostic log level")
	flag.Parse()

	if input == "" || outdir == "" {
		fmt.Fprintln(os.Stderr, "gwasingest converts a GWAS summary statistics file into a sorted, indexed store with Manhattan, QQ and top-hit artifacts.")
		flag.PrintDefaults()
		os.Exit(exitFailed)
	}

	setupLogging(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, input, outdir, layout, optionsPath, configPath, credentials))
}

func setupLogging(level string) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalln(err)
	}
	logrus.SetLevel(lvl)
}

func run(ctx context.Context, input, outdir, layout, optionsPath, configPath, credentials string) int {
	cfg, err := pipeline.LoadConfig(configPath)
	if err != nil {
		logrus.Errorln(err)
		return exitFailed
	}

	var client *storage.Client
	if strings.HasPrefix(input, "gs://") {
		var clientOpts []option.ClientOption
		if credentials != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(credentials))
		}
		client, err = storage.NewClient(ctx, clientOpts...)
		if err != nil {
			logrus.Errorln(err)
			return exitFailed
		}
		defer client.Close()
	}

	opts, err := parserOptions(ctx, input, layout, optionsPath, client)
	if err != nil {
		logrus.Errorln(err)
		return exitFailed
	}

	p, err := pipeline.New(cfg, pipeline.WithStorageClient(client))
	if err != nil {
		logrus.Errorln(err)
		return exitFailed
	}

	res := p.Run(ctx, input, opts, pipeline.PathsIn(outdir))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logrus.Errorln(err)
		return exitFailed
	}

	switch res.Status {
	case pipeline.StatusSucceeded:
		return exitSucceeded
	case pipeline.StatusIncomplete:
		return exitIncomplete
	}

	return exitFailed
}

func parserOptions(ctx context.Context, input, layout, optionsPath string, client *storage.Client) (parser.Options, error) {
	switch {
	case layout != "" && optionsPath != "":
		return parser.Options{}, fmt.Errorf("-layout and -options are mutually exclusive")
	case layout != "":
		return parser.Layout(layout)
	case optionsPath != "":
		c, err := parser.LoadConfig(optionsPath)
		if err != nil {
			return parser.Options{}, err
		}
		return c.Options()
	}

	format, err := gwasingest.Sniff(ctx, input, client)
	if err != nil {
		return parser.Options{}, err
	}
	if format.Layout == nil {
		return parser.Options{}, fmt.Errorf("could not recognize the columns of header %q; pass -layout or -options", strings.Join(format.Header, " "))
	}
	logrus.WithField("layout", format.LayoutName).Infoln("Using the layout guessed from the header")

	return *format.Layout, nil
}
