package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope is the only Google API scope sheetwatch ever requests.
const Scope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// Credentials is the persisted credential record: the OAuth2 client, the
// long-lived refresh token obtained at authorisation and the most recently
// minted access token. The refresh token is never discarded - a refresh
// response without a replacement keeps the existing one.
type Credentials struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func Load(path string) (Credentials, error) {
	credentials := Credentials{}

	b, err := os.ReadFile(path)
	if err != nil {
		return credentials, err
	}

	if err := json.Unmarshal(b, &credentials); err != nil {
		return credentials, fmt.Errorf("invalid credentials file %s (%w)", path, err)
	}

	return credentials, nil
}

// Save writes the credentials to a temporary file in the destination
// directory and renames it into place, so a crash mid-write never leaves a
// mangled credentials file.
func (c Credentials) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credentials")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func (c Credentials) config(endpoint oauth2.Endpoint) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{Scope},
	}
}

// FromClientSecret extracts the OAuth2 client from a Google 'client secret'
// JSON file (the file downloaded from the Google Cloud console).
func FromClientSecret(path string) (Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}

	config, err := google.ConfigFromJSON(b, Scope)
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid client secret file %s (%w)", path, err)
	}

	return Credentials{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
	}, nil
}
