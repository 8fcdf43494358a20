// Command msssdb maintains the MSSS observation database: it creates
// surveys, ingests parsets and records where subband data is stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/soniakeys/exit"
)

type command struct {
	usage string
	run   func(ctx context.Context, s settings, args []string) error
}

var commands = map[string]command{
	"migrate":          {"run pending schema migrations", runMigrate},
	"create-survey":    {"create a survey and its fields from grid files", runCreateSurvey},
	"create-stations":  {"load the station table", runCreateStations},
	"ingest":           {"ingest the parsets of a campaign", runIngest},
	"mark-archived":    {"record archive sites from range lists", runMarkArchived},
	"insert-node-data": {"record subband locations from node logs", runInsertNodeData},
	"mark-invalid":     {"flag observations as invalid", runMarkInvalid},
	"summary":          {"print the observing progress of a survey", runSummary},
	"show":             {"print an observation with its beams", runShow},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: msssdb [-config file] <command> [arguments]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-17s %s\n", name, commands[name].usage)
	}
}

func main() {
	defer exit.Handler()

	flags := flag.NewFlagSet("msssdb", flag.ExitOnError)
	flags.Usage = usage
	configFile := flags.String("config", "", "settings file (yaml, toml or json)")
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	s, err := loadSettings(*configFile)
	if err != nil {
		exit.Log(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, s, args[1:]); err != nil {
		exit.Log(err)
	}
}
