package commands

import (
	"flag"
	"fmt"
	"path/filepath"
)

const APP = "sheetwatch"
const VERSION = "v0.1.0"

// Options are the global command line options, shared by all subcommands.
type Options struct {
	Debug bool
}

// Command is the contract implemented by each subcommand.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Help()
	FlagSet() *flag.FlagSet
	Execute(args ...any) error
}

// command holds the options common to the subcommands that talk to Google
// Sheets.
type command struct {
	workdir     string
	credentials string
	debug       bool
}

func (c *command) flagset(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&c.workdir, "workdir", c.workdir, "Directory for working files (credentials, snapshots, etc)")
	flagset.StringVar(&c.credentials, "credentials", c.credentials, "Path for the stored credentials file")

	return flagset
}

// credentialsFile resolves the credentials file path, defaulting to
// '<workdir>/credentials.json'.
func (c *command) credentialsFile() string {
	if c.credentials != "" {
		return c.credentials
	}

	return filepath.Join(c.workdir, "credentials.json")
}

func helpOptions(flagset *flag.FlagSet) {
	fmt.Println("  Options:")

	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
	})
}
