package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/credikids/credikids/core/user"
	"github.com/credikids/credikids/storage/database"
	inmemdb "github.com/credikids/credikids/storage/database/inmem"
)

func setup(t *testing.T) (*commandLine, user.ServiceInterface) {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags)

	db := inmemdb.NewDB()
	usrSvc := user.NewService(db, inmemdb.NewUserRepository(db))

	cli := &commandLine{
		db:     &database.DB{DB: &sqlx.DB{}},
		usrSvc: usrSvc,
	}
	return cli, usrSvc
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_run(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("1,2,3,4"), nil }

	tests := []cliTest{
		{name: "no command", args: nil, wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "migrate: unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "migrate up", args: []string{"migrate", "up"}},
		{name: "migrate status", args: []string{"migrate", "status"}},
		{name: "createadmin: missing nick", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "createadmin", args: []string{"createadmin", "-nick", "mom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"admin"}, tt.args...)
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("run() error = %v, wantErrStr %q", err, tt.wantErrStr)
				}
			default:
				if err != nil {
					t.Errorf("run() error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli, usrSvc := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("4, 8, 15, 16"), nil }

	if err := cli.run([]string{"admin", "createadmin", "-nick", "dad"}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	usr, err := usrSvc.Authenticate(context.Background(), []int{4, 8, 15, 16})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if usr.Nick != "dad" {
		t.Errorf("Nick = %q, want %q", usr.Nick, "dad")
	}
	if !usr.IsAdmin() {
		t.Error("created user is not an admin")
	}
}

func Test_parseIconCodes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int
		wantErr bool
	}{
		{name: "plain", in: "1,2,3,4", want: []int{1, 2, 3, 4}},
		{name: "spaced", in: " 4, 8, 15, 16 ", want: []int{4, 8, 15, 16}},
		{name: "not numbers", in: "a,b,c,d", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIconCodes(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseIconCodes() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseIconCodes() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseIconCodes() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("parseIconCodes()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}
