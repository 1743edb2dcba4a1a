package commands

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"

	"github.com/sheetwatch/sheetwatch/credentials"
)

var AuthoriseCmd = Authorise{
	command: command{
		workdir:     DEFAULT_WORKDIR,
		credentials: "",
		debug:       false,
	},

	clientSecret: "",
}

// Authorise obtains the initial credential record: the operator grants
// sheetwatch read access to their worksheets and the resulting refresh token
// is persisted for the watch runs.
type Authorise struct {
	command
	clientSecret string
}

func (cmd *Authorise) Name() string {
	return "authorise"
}

func (cmd *Authorise) Description() string {
	return "Authorises sheetwatch to read Google Sheets worksheets"
}

func (cmd *Authorise) Usage() string {
	return "--client-secret <file>"
}

func (cmd *Authorise) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] authorise [options] --client-secret <file>\n", APP)
	fmt.Println()
	fmt.Println("  Runs the OAuth2 consent flow and stores the resulting refresh token. The client secret file")
	fmt.Println("  is the OAuth2 client JSON downloaded from the Google Cloud console")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    sheetwatch authorise --client-secret "client_secret.json"`)
	fmt.Println()
}

func (cmd *Authorise) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("authorise")

	flagset.StringVar(&cmd.clientSecret, "client-secret", cmd.clientSecret, "Path for the OAuth2 client secret JSON file")

	return flagset
}

func (cmd *Authorise) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	// ... check parameters
	if strings.TrimSpace(cmd.clientSecret) == "" {
		return fmt.Errorf("--client-secret is a required option")
	}

	client, err := credentials.FromClientSecret(cmd.clientSecret)
	if err != nil {
		return err
	}

	path := cmd.credentialsFile()

	if err := credentials.Authorise(client, google.Endpoint, path, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("authorisation error (%w)", err)
	}

	fmt.Printf("Saved credentials to %s\n", path)

	return nil
}
