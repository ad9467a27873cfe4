// Package game resolves Rock-Paper-Scissors rounds against a random
// computer opponent.
package game

import (
	"errors"
	"fmt"
	"strings"
)

// Choice is one of the three hands a player can throw.
type Choice int

const (
	Rock Choice = iota
	Paper
	Scissors
)

// Choices lists the closed domain in display order.
var Choices = []Choice{Rock, Paper, Scissors}

func (c Choice) String() string {
	switch c {
	case Rock:
		return "Rock"
	case Paper:
		return "Paper"
	case Scissors:
		return "Scissors"
	}
	return fmt.Sprintf("Choice(%d)", int(c))
}

// beats reports the choice c defeats.
func (c Choice) beats() Choice {
	switch c {
	case Rock:
		return Scissors
	case Scissors:
		return Paper
	default:
		return Rock
	}
}

// ErrUnknownChoice is returned by ParseChoice for text that names no choice.
var ErrUnknownChoice = errors.New("unknown choice")

// ParseChoice accepts "rock", "paper" or "scissors" in any case.
func ParseChoice(s string) (Choice, error) {
	for _, c := range Choices {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w %q: want rock, paper or scissors", ErrUnknownChoice, s)
}

// Outcome is the result of a round from the player's point of view.
type Outcome int

const (
	Tie Outcome = iota
	PlayerWin
	ComputerWin
)

func (o Outcome) String() string {
	switch o {
	case Tie:
		return "tie"
	case PlayerWin:
		return "player_win"
	case ComputerWin:
		return "computer_win"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Messages maps outcomes to the text shown to the player. Views may supply
// their own.
type Messages map[Outcome]string

// DefaultMessages are the stock result lines.
var DefaultMessages = Messages{
	Tie:         "It's a tie!",
	PlayerWin:   "You win!",
	ComputerWin: "Computer wins!",
}

// Message returns the stock result line for o.
func (o Outcome) Message() string { return DefaultMessages[o] }

// Decide applies the beats-relation to an ordered (player, computer) pair.
func Decide(player, computer Choice) Outcome {
	switch {
	case player == computer:
		return Tie
	case player.beats() == computer:
		return PlayerWin
	default:
		return ComputerWin
	}
}
