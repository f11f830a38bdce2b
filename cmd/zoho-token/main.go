// Command zoho-token exchanges a Zoho grant code for the refresh token the
// bot needs, and can seed the token cache with the result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/oauth2"

	"github.com/leadbot/crm-assistant/internal/crm/zoho"
)

// Options are the command line flags. The credentials can also come from
// the environment.
type Options struct {
	ClientID     string        `long:"client-id" env:"ZOHO_CLIENT_ID" required:"true" description:"Zoho API console client id"`
	ClientSecret string        `long:"client-secret" env:"ZOHO_CLIENT_SECRET" required:"true" description:"Zoho API console client secret"`
	Code         string        `long:"code" required:"true" description:"grant code copied from the redirect URL"`
	RedirectURI  string        `long:"redirect-uri" env:"ZOHO_REDIRECT_URI" default:"https://www.zoho.in" description:"authorized redirect URI, must match the console exactly"`
	AccountsURL  string        `long:"accounts-url" env:"ZOHO_ACCOUNTS_URL" default:"https://accounts.zoho.in/oauth/v2/token" description:"token endpoint for your Zoho data center"`
	TokenFile    string        `long:"token-file" description:"also write the credential to this token cache file"`
	Timeout      time.Duration `long:"timeout" default:"30s" description:"request timeout"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "\nFAILED to get refresh token: %v\n", err)
		printHints(os.Stderr)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Options, out io.Writer) error {
	fmt.Fprintf(out, "Exchanging grant code with %s (client %s..., redirect %s)\n",
		opts.AccountsURL, prefix(opts.ClientID, 5), opts.RedirectURI)

	tok, err := exchange(ctx, opts)
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		return errors.New("response carried no refresh_token; the grant code was probably already used")
	}

	fmt.Fprintln(out, "\nSUCCESS! Your Zoho refresh token is:")
	fmt.Fprintln(out, tok.RefreshToken)
	fmt.Fprintln(out, "\nSave it as zoho.refresh_token in the CRM config file or as ZOHO_REFRESH_TOKEN.")

	if opts.TokenFile != "" {
		if err := zoho.NewTokenCache(opts.TokenFile).Save(*tok); err != nil {
			return err
		}
		fmt.Fprintf(out, "Token cache written to %s\n", opts.TokenFile)
	}
	return nil
}

// exchange trades the grant code for a credential. Zoho expects the client
// credentials as form parameters.
func exchange(ctx context.Context, opts Options) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  opts.AccountsURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tok, err := conf.Exchange(ctx, opts.Code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%s: %s", re.Response.Status, describe(re))
		}
		return nil, err
	}
	return tok, nil
}

func describe(re *oauth2.RetrieveError) string {
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	var body map[string]any
	if err := json.Unmarshal(re.Body, &body); err == nil {
		if msg, ok := body["error"].(string); ok {
			return msg
		}
	}
	return string(re.Body)
}

func printHints(w io.Writer) {
	fmt.Fprintln(w, "\nTroubleshooting:")
	fmt.Fprintln(w, "- Grant codes are short lived and single use; generate a fresh one.")
	fmt.Fprintln(w, "- --client-id, --client-secret and --redirect-uri must match the Zoho API console exactly.")
	fmt.Fprintln(w, "- --accounts-url must match your Zoho data center (.com, .eu, .in, ...).")
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
