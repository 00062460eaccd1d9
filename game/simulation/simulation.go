// Package simulation plays bot games through the game service and summarises
// how they went: game length, seat advantage, and how often each tile and
// card came up.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/service"
	"github.com/wricardo/race-board-game/game/session"
	"github.com/wricardo/race-board-game/game/store"
)

// MaxRollsPerGame aborts a game that somehow never finishes
const MaxRollsPerGame = 10_000

var ErrRunaway = errors.New("game did not finish")

// Options configures a simulation run
type Options struct {
	Games   int
	Players int
	// Seed makes the run reproducible; 0 uses fresh randomness
	Seed    uint64
	Workers int
}

// GameResult is what one game produced
type GameResult struct {
	Rolls        int
	Rounds       int
	WinnerSeat   int
	Cards        map[engine.Card]int
	ExtraTurns   int
	SkippedTurns int
	Events       map[engine.EventKind]int
}

// Report aggregates many games
type Report struct {
	Games        int
	Players      int
	TotalRolls   int
	MinRolls     int
	MaxRolls     int
	WinsBySeat   []int
	Cards        map[engine.Card]int
	ExtraTurns   int
	SkippedTurns int
	Events       map[engine.EventKind]int
}

func newReport(players int) *Report {
	return &Report{
		Players:    players,
		WinsBySeat: make([]int, players),
		Cards:      make(map[engine.Card]int),
		Events:     make(map[engine.EventKind]int),
	}
}

func (r *Report) add(g *GameResult) {
	if r.Games == 0 || g.Rolls < r.MinRolls {
		r.MinRolls = g.Rolls
	}
	r.MaxRolls = max(r.MaxRolls, g.Rolls)
	r.Games++
	r.TotalRolls += g.Rolls
	r.WinsBySeat[g.WinnerSeat]++
	r.ExtraTurns += g.ExtraTurns
	r.SkippedTurns += g.SkippedTurns
	for card, n := range g.Cards {
		r.Cards[card] += n
	}
	for kind, n := range g.Events {
		r.Events[kind] += n
	}
}

// AverageRolls is the mean number of roll requests per game
func (r *Report) AverageRolls() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.TotalRolls) / float64(r.Games)
}

// Print writes the report as an aligned table
func (r *Report) Print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Games\t%d\n", r.Games)
	fmt.Fprintf(tw, "Players per game\t%d\n", r.Players)
	fmt.Fprintf(tw, "Rolls per game\tavg %.1f, min %d, max %d\n", r.AverageRolls(), r.MinRolls, r.MaxRolls)
	fmt.Fprintf(tw, "Extra turns\t%d\n", r.ExtraTurns)
	fmt.Fprintf(tw, "Skipped turns\t%d\n", r.SkippedTurns)

	fmt.Fprintln(tw, "\nWins by seat")
	for seat, wins := range r.WinsBySeat {
		pct := 0.0
		if r.Games > 0 {
			pct = 100 * float64(wins) / float64(r.Games)
		}
		fmt.Fprintf(tw, "  seat %d\t%d\t%.1f%%\n", seat+1, wins, pct)
	}

	fmt.Fprintln(tw, "\nCards drawn")
	for _, card := range engine.CardSet() {
		fmt.Fprintf(tw, "  %s\t%d\n", card, r.Cards[card])
	}

	fmt.Fprintln(tw, "\nEvents")
	kinds := make([]string, 0, len(r.Events))
	for kind := range r.Events {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(tw, "  %s\t%d\n", kind, r.Events[engine.EventKind(kind)])
	}
}

// lockedRand makes a seeded source safe to share between goroutines
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func sourceFor(seed uint64, game int) engine.Rand {
	if seed == 0 {
		return engine.SystemRand()
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, uint64(game)))}
}

// Run plays opts.Games games in parallel and aggregates the results
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Games <= 0 {
		return nil, fmt.Errorf("games must be positive, got %d", opts.Games)
	}
	if opts.Players < engine.MinPlayers || opts.Players > engine.MaxPlayers {
		return nil, fmt.Errorf("players must be between %d and %d, got %d", engine.MinPlayers, engine.MaxPlayers, opts.Players)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*GameResult, opts.Games)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range opts.Games {
		g.Go(func() error {
			res, err := PlayGame(ctx, sourceFor(opts.Seed, i), opts.Players)
			if err != nil {
				return fmt.Errorf("game %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := newReport(opts.Players)
	for _, res := range results {
		report.add(res)
	}
	return report, nil
}

// PlayGame runs one game to completion through the game service backed by
// its own in-memory store
func PlayGame(ctx context.Context, rng engine.Rand, players int) (*GameResult, error) {
	repo := store.NewMemoryRepository()
	eng := engine.NewEngine(repo, engine.WithRand(rng))
	svc := service.NewGameService(repo, eng, session.NewManager(), zap.NewNop())

	state, err := svc.CreateGame(ctx)
	if err != nil {
		return nil, err
	}
	gameID := state.Game.ID

	for seat := range players {
		if _, err := svc.AddPlayer(ctx, gameID, fmt.Sprintf("bot-%d", seat+1)); err != nil {
			return nil, err
		}
	}
	if _, err := svc.StartGame(ctx, gameID); err != nil {
		return nil, err
	}

	res := &GameResult{
		Cards:  make(map[engine.Card]int),
		Events: make(map[engine.EventKind]int),
	}
	for res.Rolls < MaxRollsPerGame {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		roll, err := svc.Roll(ctx, gameID)
		if err != nil {
			return nil, err
		}
		res.Rolls++
		if roll.CurrentCard != nil {
			res.Cards[*roll.CurrentCard]++
		}
		if roll.ExtraTurn {
			res.ExtraTurns++
		}
		if roll.SkippedTurn {
			res.SkippedTurns++
		}

		if roll.Winner != nil {
			res.WinnerSeat = roll.Winner.Order
			res.Rounds = roll.Game.CurrentTurn
			return res, countEvents(ctx, repo, gameID, res)
		}
	}
	return nil, fmt.Errorf("%w after %d rolls", ErrRunaway, MaxRollsPerGame)
}

func countEvents(ctx context.Context, repo engine.Repository, gameID int64, res *GameResult) error {
	events, err := repo.ListEvents(ctx, gameID)
	if err != nil {
		return err
	}
	for _, e := range events {
		res.Events[e.Kind]++
	}
	return nil
}

// String is a one-line summary, handy in logs
func (r *Report) String() string {
	return fmt.Sprintf("%d games, %d players, %.1f rolls on average, wins by seat %v",
		r.Games, r.Players, r.AverageRolls(), r.WinsBySeat)
}
