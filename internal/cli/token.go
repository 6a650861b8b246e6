package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/coding-arena/internal/auth"
	"github.com/suPer8Hu/coding-arena/internal/config"
)

var tokenOpts struct {
	user   uint64
	ttl    time.Duration
	secret string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "mint a development bearer token",
	Long: `Sign a bearer token accepted by the content endpoints. The secret
defaults to JWT_SECRET, the same variable the API server reads.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenOpts.user == 0 {
			return errors.New("--user must be positive")
		}
		secret := tokenOpts.secret
		if secret == "" {
			secret = config.Load().JWTSecret
		}
		tok, err := auth.SignToken(secret, tokenOpts.user, tokenOpts.ttl)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.Uint64Var(&tokenOpts.user, "user", 1, "user id carried in the token subject")
	f.DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "token lifetime")
	f.StringVar(&tokenOpts.secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
}
