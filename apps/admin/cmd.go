package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/credikids/credikids/core/user"
	"github.com/credikids/credikids/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *database.DB
	usrSvc user.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status|version - run database migrations")
	fmt.Println("  createadmin -nick NICK         - create an admin account; the 4-icon PIN will be prompted next")
	fmt.Println("  seedicons                      - load the default access-code icon catalog")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ExitOnError)
	createAdminNick := createAdminCmd.String("nick", "", "The admin's nick. The 4-icon PIN will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createAdminNick == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter PIN (4 icon ids, comma-separated):")
		pin, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		iconCodes, err := parseIconCodes(string(pin))
		if err != nil {
			return err
		}
		return cli.createAdmin(*createAdminNick, iconCodes)
	case "seedicons":
		return cli.seedIcons()
	default:
		cli.printUsage()
		return errHelp
	}
}

func parseIconCodes(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	codes := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing icon id %q", p)
		}
		codes = append(codes, id)
	}
	return codes, nil
}
