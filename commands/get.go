package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sheetwatch/sheetwatch/credentials"
	"github.com/sheetwatch/sheetwatch/log"
	"github.com/sheetwatch/sheetwatch/sheets"
)

var GetCmd = Get{
	command: command{
		workdir:     DEFAULT_WORKDIR,
		credentials: "",
		debug:       false,
	},

	url:  "",
	area: "",
	file: time.Now().Format("2006-01-02T150405.tsv"),
}

// Get downloads a single worksheet snapshot to a TSV file, without touching
// the snapshot store.
type Get struct {
	command
	url  string
	area string
	file string
}

func (cmd *Get) Name() string {
	return "get"
}

func (cmd *Get) Description() string {
	return "Retrieves a Google Sheets worksheet and stores it to a local TSV file"
}

func (cmd *Get) Usage() string {
	return "--url <url> --range <range> --file <file>"
}

func (cmd *Get) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] get [options] --url <URL> --range <range> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Downloads a Google Sheets worksheet to a TSV file")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    sheetwatch --debug get --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                           --range "Sheet1!A1:K" \`)
	fmt.Println(`                           --file "example.tsv"`)
	fmt.Println()
}

func (cmd *Get) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("get")

	flagset.StringVar(&cmd.url, "url", cmd.url, "Spreadsheet URL or ID")
	flagset.StringVar(&cmd.area, "range", cmd.area, "Worksheet range e.g. 'Sheet1!A1:K'")
	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file name. Defaults to '<yyyy-mm-ddTHHmmss>.tsv'")

	return flagset
}

func (cmd *Get) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	// ... check parameters
	if strings.TrimSpace(cmd.url) == "" {
		return fmt.Errorf("--url is a required option")
	}

	if strings.TrimSpace(cmd.area) == "" {
		return fmt.Errorf("--range is a required option")
	}

	if cmd.debug {
		log.Debugf("spreadsheet - ID:%s  range:%s", sheets.SpreadsheetID(cmd.url), cmd.area)
	}

	ctx := context.Background()

	creds, err := credentials.NewStore(cmd.credentialsFile())
	if err != nil {
		return fmt.Errorf("credentials error (%w) - run '%s authorise'", err, APP)
	}

	client, err := sheets.NewClient(ctx, creds.TokenSource(ctx), cmd.area)
	if err != nil {
		return err
	}

	current, err := client.Fetch(ctx, cmd.url)
	if err != nil {
		return fmt.Errorf("unable to retrieve data from sheet (%w)", err)
	}

	tmp, err := os.CreateTemp(os.TempDir(), "sheet")
	if err != nil {
		return err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := current.WriteTSV(tmp); err != nil {
		return fmt.Errorf("error creating TSV file (%w)", err)
	}

	tmp.Close()

	dir := filepath.Dir(cmd.file)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), cmd.file); err != nil {
		return err
	}

	log.Infof("retrieved %v rows to file %s", len(current.Rows), cmd.file)

	return nil
}
