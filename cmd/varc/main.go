package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/op/go-logging"
	"github.com/seiflotfy/varc"
	"github.com/seiflotfy/varc/codec"
	"github.com/seiflotfy/varc/lzw"
)

var log = logging.MustGetLogger("varc/cmd")

const progName = "varc"
const usageMessageRaw = `
Usage: varc [OPTIONS] SUBCOMMAND...

Subcommands:
  encode PATH ALGORITHM [NEW_NAME]
    Compress the file at PATH with ALGORITHM (lzw or huf). The archive is
    written next to PATH as NEW_NAME.ALGORITHM, or under the original name
    when NEW_NAME is omitted.

  decode PATH [NEW_NAME]
    Restore the archive at PATH. The codec is chosen by the extension of
    PATH. The original file extension is restored.

  help
    Show this message.

Options:
  -d, -debug        log debug events to standard error
  -variable         LZW: pack codes with variable widths
  -restart          LZW: reseed the dictionary when it fills up
  -dict-size N      LZW: maximum dictionary size (default 4096)

Examples:
  varc encode text.txt lzw encoded_text
  varc decode encoded_text.lzw decoded_text
`

type nullWriter struct{}

func (n *nullWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

var ourFlags *flag.FlagSet

func usageMessage() string {
	return strings.TrimLeft(usageMessageRaw, "\n")
}

func usageErrorf(detailFmt string, detailArgs ...interface{}) {
	detail := fmt.Sprintf(detailFmt, detailArgs...)
	fmt.Fprintf(os.Stderr, "%s: %s\n%s", progName, detail, usageMessage())
	os.Exit(64)
}

func exitError(err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", progName, err.Error())
	os.Exit(1)
}

var argI int = 0

func nextArg(expected string) string {
	if !(argI < ourFlags.NArg()) {
		usageErrorf("not enough arguments; expected %s", expected)
	}
	arg := ourFlags.Arg(argI)
	argI++
	return arg
}

func optionalArg() string {
	if argI < ourFlags.NArg() {
		arg := ourFlags.Arg(argI)
		argI++
		return arg
	}
	return ""
}

func endOfArgs() {
	if argI < ourFlags.NArg() {
		usageErrorf("too many arguments at %d (\"%s\")", argI, ourFlags.Arg(argI))
	}
}

var leveledLogBackend logging.LeveledBackend

func startLogging() {
	backend := logging.NewLogBackend(os.Stderr, progName+": ", 0)
	formatSpec := "%{level:8s} %{module:-20s} | %{message}"
	formatter := logging.MustStringFormatter(formatSpec)
	formatted := logging.NewBackendFormatter(backend, formatter)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.WARNING, "")
	logging.SetBackend(leveled)
	leveledLogBackend = leveled
}

type cliOptions struct {
	variable bool
	restart  bool
	dictSize int
}

func (o cliOptions) codecOptions() []varc.Option {
	var lzwOpts []lzw.Option
	if o.variable {
		lzwOpts = append(lzwOpts, lzw.WithPacking(lzw.PackingVariable))
	}
	if o.restart {
		lzwOpts = append(lzwOpts, lzw.WithRestart())
	}
	if o.dictSize != 0 {
		lzwOpts = append(lzwOpts, lzw.WithMaxDictionarySize(o.dictSize))
	}
	return []varc.Option{varc.WithLZW(lzwOpts...)}
}

// writeReport prints the summary table of one conversion.
func writeReport(w io.Writer, r varc.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	ratio := ""
	if r.Operation == varc.OpEncode {
		ratio = fmt.Sprintf("%.2f", r.Ratio())
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", "", "name", "size", "compression rate", "time elapsed")
	fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", "original", filepath.Base(r.Source), r.SourceSize, "", "")
	fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.4fs\n", "converted", filepath.Base(r.Target), r.TargetSize, ratio, r.Elapsed.Seconds())
	return tw.Flush()
}

func encodeFromArgs(opts cliOptions) (func() error, error) {
	path := nextArg("PATH")
	algArg := nextArg("ALGORITHM")
	newName := optionalArg()
	endOfArgs()

	alg, err := codec.ParseAlgorithm(algArg)
	if err != nil {
		return nil, err
	}
	return func() error {
		report, err := varc.EncodeFile(path, alg, newName, opts.codecOptions()...)
		if err != nil {
			return err
		}
		return writeReport(os.Stdout, report)
	}, nil
}

func decodeFromArgs(opts cliOptions) (func() error, error) {
	path := nextArg("PATH")
	newName := optionalArg()
	endOfArgs()

	return func() error {
		report, err := varc.DecodeFile(path, newName, opts.codecOptions()...)
		if err != nil {
			return err
		}
		return writeReport(os.Stdout, report)
	}, nil
}

func main() {
	startLogging()

	var err error
	ourFlags = flag.NewFlagSet(progName, flag.ContinueOnError)
	ourFlags.Usage = func() {}
	ourFlags.SetOutput(&nullWriter{})

	// Usage strings are hardcoded above.

	var debugLogging bool
	var opts cliOptions
	ourFlags.BoolVar(&debugLogging, "debug", false, "")
	ourFlags.BoolVar(&debugLogging, "d", false, "")
	ourFlags.BoolVar(&opts.variable, "variable", false, "")
	ourFlags.BoolVar(&opts.restart, "restart", false, "")
	ourFlags.IntVar(&opts.dictSize, "dict-size", 0, "")

	argErr := ourFlags.Parse(os.Args[1:])
	if argErr == flag.ErrHelp {
		io.WriteString(os.Stdout, usageMessage())
		os.Exit(0)
	} else if argErr != nil {
		usageErrorf("%s", argErr.Error())
	}

	if debugLogging {
		leveledLogBackend.SetLevel(logging.DEBUG, "")
	}

	var requestedCommand func() error
	subcommandArg := nextArg("SUBCOMMAND")
	switch subcommandArg {
	default:
		usageErrorf("unrecognized subcommand \"%s\"", subcommandArg)
	case "help":
		endOfArgs()
		io.WriteString(os.Stdout, usageMessage())
		return
	case "encode":
		requestedCommand, err = encodeFromArgs(opts)
	case "decode":
		requestedCommand, err = decodeFromArgs(opts)
	}

	if err != nil {
		exitError(err)
	}

	log.Debugf("running %s", subcommandArg)
	err = requestedCommand()
	if err != nil {
		exitError(err)
	}
}
