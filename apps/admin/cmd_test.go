package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/services/auth/local"
)

func setup(t *testing.T) (*commandLine, *local.Provider) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	auth := local.NewProvider("test-secret", time.Hour, 24*time.Hour)
	return &commandLine{
		openDB:     func() (*sql.DB, error) { return nil, nil },
		auth:       auth,
		validate:   validate,
		translator: translator,
	}, auth
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "attendance_notes", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate_openFails(t *testing.T) {
	cli, _ := setup(t)
	cli.openDB = func() (*sql.DB, error) { return nil, errors.New("connection refused") }

	err := cli.run([]string{"admin", "migrate", "up"})
	assert.EqualError(t, err, "connection refused")
}

func Test_commandLine_addUser(t *testing.T) {
	cli, auth := setup(t)
	const email = "registrar@shule.test"

	type extra struct {
		pwd     string
		confirm string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"adduser", "-email", email}, wantErr: errHelp},
		{
			name: "invalid email", args: []string{"adduser", "-email", "lol"},
			extra: extra{pwd: "Kin$hasa2024", confirm: "Kin$hasa2024"}, wantErrStr: "email:",
		},
		{
			name: "passwords differ", args: []string{"adduser", "-email", email},
			extra: extra{pwd: "Kin$hasa2024", confirm: "Kin$hasa2025"}, wantErrStr: "password_confirm:",
		},
		{
			name: "weak password", args: []string{"adduser", "-email", email},
			extra: extra{pwd: "short", confirm: "short"}, wantErrStr: "password: password must contain at least 8 characters",
		},
		{
			name: "registered", args: []string{"adduser", "-email", " Registrar@Shule.test "},
			extra: extra{pwd: "Kin$hasa2024", confirm: "Kin$hasa2024"},
		},
		{
			name: "already registered", args: []string{"adduser", "-email", email},
			extra: extra{pwd: "Kin$hasa2024", confirm: "Kin$hasa2024"}, wantErr: local.ErrAccountExists,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		prompts := 0
		readPasswordFunc = func(fd int) ([]byte, error) {
			prompts++
			if extra, ok := tt.extra.(extra); ok {
				if prompts == 1 {
					return []byte(extra.pwd), nil
				}
				return []byte(extra.confirm), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
				_, err = auth.SignIn(context.Background(), email, "Kin$hasa2024")
				assert.NoError(t, err, "the account can sign in")
			}
		})
	}
}
