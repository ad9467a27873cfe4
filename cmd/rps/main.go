// Command rps plays Rock-Paper-Scissors against the computer in a terminal.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desk-utils-lab/internal/config"
	"github.com/desk-utils-lab/internal/game"
	"github.com/desk-utils-lab/internal/logging"
)

// play reads one choice per line from in until EOF or "quit" and prints each
// round's result to out.
func play(r *game.Resolver, msgs game.Messages, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "rock, paper or scissors? ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			fmt.Fprint(out, "rock, paper or scissors? ")
			continue
		case "q", "quit", "exit":
			return nil
		}
		choice, err := game.ParseChoice(line)
		if err != nil {
			fmt.Fprintln(out, err)
			fmt.Fprint(out, "rock, paper or scissors? ")
			continue
		}
		round := r.Play(choice)
		fmt.Fprintf(out, "You chose: %s\nComputer chose: %s\n%s\n", round.Player, round.Computer, msgs[round.Outcome])
		fmt.Fprint(out, "rock, paper or scissors? ")
	}
	return sc.Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stderr: true})
	defer func() { _ = logging.Sync() }()

	r := game.NewResolver(cfg.RPSSeed)
	if cfg.RPSSeed == 0 {
		if r, err = game.NewRandomResolver(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
	}
	if err := play(r, game.DefaultMessages, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	fmt.Println()
}
