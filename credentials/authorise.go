package credentials

import (
	"fmt"
	"io"

	"golang.org/x/net/context"
	"golang.org/x/oauth2"
)

// Authorise runs the interactive OAuth2 consent flow: it prints the consent
// URL, reads the authorization code pasted back by the operator, exchanges it
// for a token pair and persists the completed credential record to path.
//
// AccessTypeOffline is what makes Google return the long-lived refresh token
// alongside the access token.
func Authorise(client Credentials, endpoint oauth2.Endpoint, path string, in io.Reader, out io.Writer) error {
	config := client.config(endpoint)
	url := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code:\n%v\n", url)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("unable to read authorization code (%w)", err)
	}

	token, err := config.Exchange(context.TODO(), code)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web (%w)", err)
	}

	if token.RefreshToken == "" {
		return fmt.Errorf("authorization response did not include a refresh token - revoke the application's access and re-authorise")
	}

	client.AccessToken = token.AccessToken
	client.RefreshToken = token.RefreshToken
	client.Expiry = token.Expiry

	return client.Save(path)
}
