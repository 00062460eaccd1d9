// Command bot plays complete games against a running server through the
// REST API. It is handy for smoke testing a deployment and for filling a
// fresh server with history to look at.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/race-board-game/game/engine"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Play games against a race board server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("RACEBOARD_URL")},
			&cli.StringSliceFlag{Name: "player", Value: []string{"red", "blue"}, Usage: "Player names, repeat for each seat"},
			&cli.IntFlag{Name: "continue", Usage: "Keep playing an existing game by ID"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "Games to play; later games are rematches"},
			&cli.IntFlag{Name: "max-rolls", Value: 1000, Usage: "Give up on a game after this many rolls"},
			&cli.DurationFlag{Name: "delay", Usage: "Pause between rolls"},
			&cli.BoolFlag{Name: "v", Usage: "Log every roll"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	b := &bot{
		client:   NewClient(cmd.String("url")),
		logger:   logger,
		maxRolls: int(cmd.Int("max-rolls")),
		delay:    cmd.Duration("delay"),
		verbose:  cmd.Bool("v"),
	}

	logger.Info("connecting to game server", zap.String("url", cmd.String("url")))
	if id := cmd.Int("continue"); id > 0 {
		b.client.Use(int64(id))
	} else if err := b.setup(ctx, cmd.StringSlice("player")); err != nil {
		return err
	}

	for i := range int(cmd.Int("games")) {
		if i > 0 {
			if _, err := b.client.Reset(ctx); err != nil {
				return err
			}
			if _, err := b.client.Start(ctx); err != nil {
				return err
			}
			logger.Info("rematch created", zap.Int64("game_id", b.client.GameID()))
		}
		if _, err := b.play(ctx); err != nil {
			return err
		}
	}
	return nil
}

type bot struct {
	client   *Client
	logger   *zap.Logger
	maxRolls int
	delay    time.Duration
	verbose  bool
}

var errGaveUp = errors.New("game did not finish")

// setup creates a game, seats the players and starts it
func (b *bot) setup(ctx context.Context, names []string) error {
	if _, err := b.client.CreateGame(ctx); err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	for _, name := range names {
		if _, err := b.client.AddPlayer(ctx, name); err != nil {
			return fmt.Errorf("add player %q: %w", name, err)
		}
	}
	if _, err := b.client.Start(ctx); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	b.logger.Info("game created", zap.Int64("game_id", b.client.GameID()), zap.Strings("players", names))
	return nil
}

// play rolls until somebody wins and returns the winner
func (b *bot) play(ctx context.Context) (*engine.Player, error) {
	for rolls := 1; rolls <= b.maxRolls; rolls++ {
		result, err := b.client.Roll(ctx)
		if err != nil {
			return nil, fmt.Errorf("roll: %w", err)
		}

		if b.verbose {
			fields := []zap.Field{
				zap.Int("roll", rolls),
				zap.Int("dice", result.DiceValue),
				zap.Bool("skipped", result.SkippedTurn),
				zap.Bool("extra_turn", result.ExtraTurn),
			}
			if result.CurrentCard != nil {
				fields = append(fields, zap.String("card", string(*result.CurrentCard)))
			}
			if len(result.Events) > 0 {
				fields = append(fields, zap.String("last_event", result.Events[0].Message))
			}
			b.logger.Info("rolled", fields...)
		}

		if result.Winner != nil {
			b.logger.Info("game won",
				zap.Int64("game_id", b.client.GameID()),
				zap.String("winner", result.Winner.Name),
				zap.Int("rolls", rolls),
				zap.Int("turn", result.Game.CurrentTurn),
			)
			return result.Winner, nil
		}

		if b.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.delay):
			}
		}
	}
	return nil, fmt.Errorf("%w after %d rolls", errGaveUp, b.maxRolls)
}
