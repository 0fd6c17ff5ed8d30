package commands

import (
	"fmt"
	"os"

	"github.com/wolfeidau/sopdesk/internal/models"
)

// TokenCmd issues an access token for a registration, for local testing.
type TokenCmd struct {
	Registration string     `arg:"" help:"registration number the token is issued for"`
	Token        TokenFlags `embed:"" prefix:"token-"`
}

func (c *TokenCmd) Run(globals *Globals) error {
	if _, err := models.ParseRegistration(c.Registration); err != nil {
		return err
	}

	tokens, err := c.Token.tokenService()
	if err != nil {
		return err
	}

	token, err := tokens.Issue(c.Registration)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, token)
	return err
}
