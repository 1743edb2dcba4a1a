package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sheetwatch/sheetwatch/credentials"
	"github.com/sheetwatch/sheetwatch/log"
	"github.com/sheetwatch/sheetwatch/sheets"
	"github.com/sheetwatch/sheetwatch/snapshot"
	"github.com/sheetwatch/sheetwatch/store"
	"github.com/sheetwatch/sheetwatch/webhook"
)

var WatchCmd = Watch{
	command: command{
		workdir:     DEFAULT_WORKDIR,
		credentials: "",
		debug:       false,
	},

	conf:    "",
	sheets:  "",
	area:    "",
	db:      "",
	webhook: "",
	workers: 4,
	retries: 3,

	backoff: func(attempt uint) time.Duration {
		return time.Duration(1<<attempt) * time.Second
	},
}

// Watch is the single-shot run orchestrator: it fetches the current contents
// of every listed sheet, diffs each against its last recorded snapshot,
// reports the differences and records the new snapshots.
type Watch struct {
	command
	conf    string
	sheets  string
	area    string
	db      string
	webhook string
	workers uint
	retries uint

	backoff func(attempt uint) time.Duration
	flags   *flag.FlagSet
}

func (cmd *Watch) Name() string {
	return "watch"
}

func (cmd *Watch) Description() string {
	return "Fetches the watched Google Sheets worksheets and reports changes since the previous run"
}

func (cmd *Watch) Usage() string {
	return "--sheets <file> --range <range>"
}

func (cmd *Watch) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] watch [options] --sheets <file> --range <range>\n", APP)
	fmt.Println()
	fmt.Println("  Compares each listed worksheet against the snapshot recorded on the previous run and reports")
	fmt.Println("  added, removed and changed rows. Options not given on the command line are read from the")
	fmt.Println("  --config file (YAML)")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    sheetwatch --debug watch --sheets "watched.list" --range "Sheet1!A1:K"`)
	fmt.Println(`    sheetwatch watch --config "/usr/local/etc/sheetwatch/watch.yaml"`)
	fmt.Println()
}

func (cmd *Watch) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("watch")

	flagset.StringVar(&cmd.conf, "config", cmd.conf, "Optional YAML configuration file")
	flagset.StringVar(&cmd.sheets, "sheets", cmd.sheets, "File with the spreadsheet IDs/URLs to watch, one per line")
	flagset.StringVar(&cmd.area, "range", cmd.area, "Worksheet range e.g. 'Sheet1!A1:K'")
	flagset.StringVar(&cmd.db, "db", cmd.db, "Snapshot database file. Defaults to '<workdir>/snapshots.db'")
	flagset.StringVar(&cmd.webhook, "webhook", cmd.webhook, "Webhook URL notified of changed sheets")
	flagset.UintVar(&cmd.workers, "workers", cmd.workers, "Number of sheets fetched concurrently")
	flagset.UintVar(&cmd.retries, "retries", cmd.retries, "Retry attempts for transient fetch errors")

	cmd.flags = flagset

	return flagset
}

func (cmd *Watch) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	if cmd.conf != "" {
		if err := cmd.configure(cmd.conf); err != nil {
			return err
		}
	}

	// ... check parameters
	if strings.TrimSpace(cmd.sheets) == "" {
		return fmt.Errorf("--sheets is a required option")
	}

	if strings.TrimSpace(cmd.area) == "" {
		return fmt.Errorf("--range is a required option")
	}

	if cmd.workers < 1 {
		cmd.workers = 1
	}

	if cmd.retries < 1 {
		cmd.retries = 1
	}

	ids, err := readSheetList(cmd.sheets)
	if err != nil {
		return fmt.Errorf("unable to read sheet list (%w)", err)
	}

	if len(ids) == 0 {
		return fmt.Errorf("no sheets listed in %s", cmd.sheets)
	}

	log.Debugf("watching %v sheets, range %s", len(ids), cmd.area)

	ctx := context.Background()

	// ... credentials
	creds, err := credentials.NewStore(cmd.credentialsFile())
	if err != nil {
		return fmt.Errorf("credentials error (%w) - run '%s authorise'", err, APP)
	}

	// Acquire a valid access token up front - no sheet can be fetched
	// without one, so a credential failure is fatal for the whole run
	if _, err := creds.Token(ctx); err != nil {
		if errors.Is(err, credentials.ErrUnauthorized) {
			return fmt.Errorf("%w - run '%s authorise' to re-authenticate", err, APP)
		}

		return fmt.Errorf("unable to acquire access token (%w)", err)
	}

	// ... collaborators
	client, err := sheets.NewClient(ctx, creds.TokenSource(ctx), cmd.area)
	if err != nil {
		return err
	}

	db := cmd.db
	if db == "" {
		db = filepath.Join(cmd.workdir, "snapshots.db")
	}

	if err := os.MkdirAll(filepath.Dir(db), 0770); err != nil {
		return err
	}

	snapshots, err := store.Open(db)
	if err != nil {
		return err
	}

	defer snapshots.Close()

	outcomes := cmd.run(ctx, ids, client, creds, snapshots, webhook.NewNotifier(cmd.webhook))

	// ... summarize
	failed := 0

	log.Infof("%v sheets processed", len(outcomes))
	for _, v := range outcomes {
		log.Infof("   %-44v  %v", v.sheetID, v)
		if v.status == sheetFailed {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%v of %v sheets could not be processed", failed, len(outcomes))
	}

	return nil
}

type status int

const (
	sheetUnchanged status = iota
	sheetChanged
	sheetFirst
	sheetSkipped
	sheetFailed
)

type outcome struct {
	sheetID string
	status  status
	changes int
	reason  string
}

func (o outcome) String() string {
	switch o.status {
	case sheetChanged:
		return fmt.Sprintf("changed - %v rows", o.changes)

	case sheetFirst:
		return "first observation"

	case sheetSkipped:
		return fmt.Sprintf("skipped (%s)", o.reason)

	case sheetFailed:
		return fmt.Sprintf("failed (%s)", o.reason)

	default:
		return "unchanged"
	}
}

// fetcher and snapshotStore are the collaborator contracts the orchestrator
// consumes (satisfied by sheets.Client and store.Store).
type fetcher interface {
	Fetch(ctx context.Context, sheetID string) (snapshot.Snapshot, error)
}

type snapshotStore interface {
	Load(sheetID string) (snapshot.Snapshot, error)
	Save(sheetID string, current snapshot.Snapshot) error
}

type invalidator interface {
	Invalidate()
}

// run fans the sheet list out to a bounded worker pool. Sheets are
// independent of each other - an error local to one sheet never aborts the
// others - and the per-sheet outcomes come back in list order.
func (cmd *Watch) run(ctx context.Context, ids []string, fetch fetcher, creds invalidator, snapshots snapshotStore, notify *webhook.Notifier) []outcome {
	outcomes := make([]outcome, len(ids))

	var wg sync.WaitGroup

	jobs := make(chan int)

	for w := uint(0); w < cmd.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range jobs {
				outcomes[i] = cmd.process(ctx, ids[i], fetch, creds, snapshots, notify)
			}
		}()
	}

	for i := range ids {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return outcomes
}

// process runs the pipeline for one sheet: fetch, load the previous
// snapshot, diff, report and persist. The new snapshot is only persisted
// after the diff has been computed and consumed, so a crash mid-run leaves
// the previous snapshot (and the pending changes) intact for the next run.
func (cmd *Watch) process(ctx context.Context, sheetID string, fetch fetcher, creds invalidator, snapshots snapshotStore, notify *webhook.Notifier) outcome {
	current, err := cmd.fetch(ctx, sheetID, fetch, creds)
	if err != nil {
		if sheets.Kindof(err) == sheets.NotFound {
			log.Warnf("%v  not found - skipped", sheetID)
			return outcome{sheetID: sheetID, status: sheetSkipped, reason: "not found"}
		}

		log.Errorf("%v  %v", sheetID, err)
		return outcome{sheetID: sheetID, status: sheetFailed, reason: fmt.Sprintf("%v", err)}
	}

	var previous *snapshot.Snapshot

	if last, err := snapshots.Load(sheetID); err == nil {
		previous = &last
	} else if !errors.Is(err, store.ErrNoSnapshot) {
		// An ambiguous load error is not 'no previous snapshot' - a diff
		// against nothing would fabricate a first observation
		log.Errorf("%v  %v", sheetID, err)
		return outcome{sheetID: sheetID, status: sheetFailed, reason: fmt.Sprintf("%v", err)}
	}

	result := snapshot.Compare(previous, current)

	for _, change := range result.Changes {
		log.Infof("%v  %v", sheetID, change)
	}

	if err := snapshots.Save(sheetID, current); err != nil {
		log.Errorf("%v  %v", sheetID, err)
		return outcome{sheetID: sheetID, status: sheetFailed, reason: fmt.Sprintf("%v", err)}
	}

	switch {
	case result.First:
		log.Infof("%v  first observation - %v rows recorded", sheetID, result.Rows)
		return outcome{sheetID: sheetID, status: sheetFirst}

	case result.Unchanged():
		log.Debugf("%v  unchanged", sheetID)
		return outcome{sheetID: sheetID, status: sheetUnchanged}

	default:
		if notify.Enabled() {
			if err := notify.Send(ctx, message(sheetID, result.Changes)); err != nil {
				log.Warnf("%v  %v", sheetID, err)
			}
		}

		return outcome{sheetID: sheetID, status: sheetChanged, changes: len(result.Changes)}
	}
}

// fetch retrieves the sheet's current contents, retrying transient errors
// with backoff. A rejected access token forces a credential refresh and a
// single retry before being escalated as a per-sheet failure.
func (cmd *Watch) fetch(ctx context.Context, sheetID string, fetch fetcher, creds invalidator) (snapshot.Snapshot, error) {
	reauthorised := false

	var current snapshot.Snapshot
	var err error

	for attempt := uint(0); attempt < cmd.retries; {
		if current, err = fetch.Fetch(ctx, sheetID); err == nil {
			return current, nil
		}

		switch sheets.Kindof(err) {
		case sheets.NotFound:
			return current, err

		case sheets.Unauthorized:
			if reauthorised {
				return current, err
			}

			log.Warnf("%v  access token rejected - refreshing credentials", sheetID)
			creds.Invalidate()
			reauthorised = true

		default:
			attempt++
			if attempt < cmd.retries {
				log.Warnf("%v  retrying fetch after transient error (%v)", sheetID, err)
				time.Sleep(cmd.backoff(attempt))
			}
		}
	}

	return current, err
}

func message(sheetID string, changes []snapshot.Change) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %v rows changed", sheetID, len(changes))

	for _, change := range changes {
		fmt.Fprintf(&b, "\n%v", change)
	}

	return b.String()
}

// readSheetList reads the watched sheet identifiers, one per line. Blank
// lines and '#' comments are ignored and duplicates are dropped, keeping
// first occurrence order.
func readSheetList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	ids := []string{}
	seen := map[string]bool{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	return ids, scanner.Err()
}

// configure fills in options not set explicitly on the command line from a
// YAML file.
func (cmd *Watch) configure(path string) error {
	conf := struct {
		Workdir     string `yaml:"workdir"`
		Credentials string `yaml:"credentials"`
		Sheets      string `yaml:"sheets"`
		Range       string `yaml:"range"`
		DB          string `yaml:"db"`
		Webhook     string `yaml:"webhook"`
		Workers     uint   `yaml:"workers"`
		Retries     uint   `yaml:"retries"`
	}{}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read configuration file (%w)", err)
	}

	if err := yaml.Unmarshal(b, &conf); err != nil {
		return fmt.Errorf("invalid configuration file %s (%w)", path, err)
	}

	set := map[string]bool{}
	if cmd.flags != nil {
		cmd.flags.Visit(func(f *flag.Flag) {
			set[f.Name] = true
		})
	}

	if !set["workdir"] && conf.Workdir != "" {
		cmd.workdir = conf.Workdir
	}

	if !set["credentials"] && conf.Credentials != "" {
		cmd.credentials = conf.Credentials
	}

	if !set["sheets"] && conf.Sheets != "" {
		cmd.sheets = conf.Sheets
	}

	if !set["range"] && conf.Range != "" {
		cmd.area = conf.Range
	}

	if !set["db"] && conf.DB != "" {
		cmd.db = conf.DB
	}

	if !set["webhook"] && conf.Webhook != "" {
		cmd.webhook = conf.Webhook
	}

	if !set["workers"] && conf.Workers > 0 {
		cmd.workers = conf.Workers
	}

	if !set["retries"] && conf.Retries > 0 {
		cmd.retries = conf.Retries
	}

	return nil
}
