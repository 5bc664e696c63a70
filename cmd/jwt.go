package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
)

func generateJWTCmd() *cobra.Command {
	var (
		clientID string
		secret   string
		opts     tokens.Options
		ttl      time.Duration
		header   bool
	)
	command := &cobra.Command{
		Use:     "generate-jwt",
		Short:   "generate a ZGW token for a client",
		Example: "openzaak generate-jwt --client-id demo --secret letmein --ttl 1h",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TTL = ttl
			tok, err := tokens.Generate(clientID, secret, opts)
			if err != nil {
				return err
			}
			if header {
				tok = "Bearer " + tok
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	f := command.Flags()
	f.StringVar(&clientID, "client-id", "", "client id (required)")
	f.StringVar(&secret, "secret", "", "shared secret of the client (required)")
	f.StringVar(&opts.Issuer, "issuer", tokens.DefaultIssuer, "iss claim")
	f.StringVar(&opts.UserID, "user-id", "", "user_id claim")
	f.StringVar(&opts.UserRepresentation, "user-representation", "", "user_representation claim")
	f.DurationVar(&ttl, "ttl", 0, "lifetime of the token; 0 omits the exp claim")
	f.BoolVar(&header, "header", false, "print as an Authorization header value")
	_ = command.MarkFlagRequired("client-id")
	_ = command.MarkFlagRequired("secret")
	return command
}
