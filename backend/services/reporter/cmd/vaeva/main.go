package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"vaeva/backend/libs/logging"
	app "vaeva/backend/services/reporter/internal/app"
	"vaeva/backend/services/reporter/internal/config"
	"vaeva/backend/services/reporter/internal/daterange"
)

const usageEpilog = `
Dates:
  begin   bom (beginning of month), bolm (beginning of last month) or any date
  end     eolm (end of last month) or any date

Example:
  vaeva -o invoice bolm eolm
`

type options struct {
	site, user, output, config string
	begin, end                 string
}

func parseArgs(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("vaeva", pflag.ContinueOnError)
	fs.StringVarP(&opts.site, "site", "s", "", "only fetch this site")
	fs.StringVarP(&opts.user, "user", "u", "", "only render this user in user outputs")
	fs.StringVarP(&opts.output, "output", "o", "", "only generate this output")
	fs.StringVarP(&opts.config, "config", "c", config.DefaultPath, "report configuration file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vaeva [flags] <begin> <end>\n\nFlags:\n%s%s", fs.FlagUsages(), usageEpilog)
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return options{}, fmt.Errorf("expected <begin> <end>, got %d arguments", fs.NArg())
	}
	if !fs.Changed("config") {
		if env := os.Getenv("CONFIG_FILE"); env != "" {
			opts.config = env
		}
	}
	opts.begin, opts.end = fs.Arg(0), fs.Arg(1)
	return opts, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // best-effort flush

	cfg, err := config.Load(opts.config)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", opts.config), zap.Error(err))
	}

	period, err := daterange.Resolve(opts.begin, opts.end, time.Now(), time.Local)
	if err != nil {
		logger.Fatal("invalid date range", zap.Error(err))
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	req := app.RunRequest{
		Range:  period,
		Site:   opts.site,
		User:   opts.user,
		Output: opts.output,
	}
	if err := application.Run(ctx, req); err != nil {
		logger.Fatal("report run failed", zap.Error(err))
	}
}
