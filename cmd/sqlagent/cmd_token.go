package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	pkgauth "github.com/matiasleandrokruk/sqlagent/pkg/auth"
)

var errNoJWTSecret = errors.New("SQLAGENT_JWT_SECRET is not set")

func (a *app) tokenCmd() *cobra.Command {
	var ttlHours string
	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Mint a bearer token for an HTTP tool host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return errNoJWTSecret
			}
			subject := askSubject
			if len(args) == 1 {
				subject = args[0]
			}
			token, err := pkgauth.GenerateJWT([]byte(a.cfg.JWTSecret), subject, pkgauth.ParseExpiry(ttlHours))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&ttlHours, "ttl", strconv.Itoa(pkgauth.DefaultJWTExpiry), "token lifetime in hours")
	return cmd
}
