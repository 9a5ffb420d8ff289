package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
)

// addUser checks the password policy locally, then registers the account with the identity provider.
func (cli *commandLine) addUser(email, pwd, confirm string) error {
	acc := account.NewAccount{Email: email, Password: pwd, PasswordConfirm: confirm}
	if err := acc.Validate(cli.validate); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			return errors.New(describeFields(core.TranslateErrors(vErrs, cli.translator)))
		}
		return err
	}

	usr, err := cli.auth.SignUp(context.Background(), acc.Email, acc.Password)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	fmt.Printf("account %s registered (id %s)\n", usr.Email, usr.ID)
	return nil
}

func describeFields(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for fld, msg := range fields {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
