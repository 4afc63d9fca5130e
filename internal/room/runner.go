package room

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/sakshamg567/snakearena/internal/game"
	"github.com/sakshamg567/snakearena/internal/results"
	"github.com/sakshamg567/snakearena/logger"
	"github.com/sakshamg567/snakearena/pkg/utils"
)

const recordTimeout = 5 * time.Second

type outcome struct {
	s        *Session
	cmd      game.Command
	answered bool
	err      error
}

// run drives a Playing room until the game ends or ctx is cancelled.
func (r *Room) run(ctx context.Context, g *match, sessions []*Session) {
	defer g.cancel()
	tag := utils.ShortID(g.id)

	for tick := 0; ; tick++ {
		if ctx.Err() != nil {
			abandon(sessions)
			r.detach(g)
			logger.Info("Room %q: game %s cancelled at tick %d", r.Name, tag, tick)
			return
		}

		snapshot, alive := g.grid.snapshot()
		outcomes, ok := exchange(ctx, g, sessions, snapshot, alive)
		if !ok {
			abandon(sessions)
			r.detach(g)
			logger.Info("Room %q: game %s cancelled at tick %d", r.Name, tag, tick)
			return
		}
		sessions = g.grid.apply(outcomes)

		if ctx.Err() != nil {
			continue
		}

		over, stale, result := r.advance(g, snapshot)
		if stale {
			abandon(sessions)
			return
		}
		if over {
			for _, s := range sessions {
				s.Finish()
			}
			logger.Info("Room %q: game %s finished after %d ticks", r.Name, tag, result.Ticks)
			r.record(result)
			return
		}
	}
}

// snapshot serialises the grid once for every session and reads which
// snakes are still alive.
func (sm *sharedMap) snapshot() (json.RawMessage, map[game.SnakeID]bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := json.Marshal(sm.m)
	if err != nil {
		panic("room: marshal map: " + err.Error())
	}
	alive := make(map[game.SnakeID]bool)
	for _, id := range sm.m.Living() {
		alive[id] = true
	}
	return data, alive
}

// exchange fans the snapshot out to every session and waits until each one
// has answered or faulted. It gives up as soon as ctx is cancelled.
func exchange(ctx context.Context, g *match, sessions []*Session, snapshot json.RawMessage, alive map[game.SnakeID]bool) ([]outcome, bool) {
	playing := mapMessage(TypePlaying, snapshot)
	dead := mapMessage(TypeDead, snapshot)

	answers := make(chan outcome, len(sessions))
	for _, s := range sessions {
		go func(s *Session) {
			line, await := dead, false
			if alive[s.ID] {
				line, await = playing, true
			}
			cmd, err := s.Exchange(ctx, line, await, g.tickTimeout)
			answers <- outcome{s: s, cmd: cmd, answered: await && err == nil, err: err}
		}(s)
	}

	outcomes := make([]outcome, 0, len(sessions))
	for range sessions {
		select {
		case o := <-answers:
			outcomes = append(outcomes, o)
		case <-ctx.Done():
			return nil, false
		}
	}
	return outcomes, true
}

// apply turns snakes for answered commands and culls the snakes of faulted
// sessions, once per tick and before the step. It returns the sessions
// still connected, ordered by id.
func (sm *sharedMap) apply(outcomes []outcome) []*Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	live := make([]*Session, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			logger.Warn("Dropping %s (%d): %v", o.s.Addr, o.s.ID, o.err)
			sm.m.Remove(o.s.ID)
			continue
		}
		if o.answered {
			sm.m.Turn(o.s.ID, o.cmd)
		}
		live = append(live, o.s)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live
}

// advance records the broadcast snapshot and steps the grid. stale is set
// when the room has been reset away from this game in the meantime.
func (r *Room) advance(g *match, snapshot json.RawMessage) (over, stale bool, result *results.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.match != g {
		return false, true, nil
	}

	g.grid.mu.Lock()
	defer g.grid.mu.Unlock()

	r.history = append(r.history, snapshot)

	var scores map[game.SnakeID]int
	if g.maxTicks > 0 && len(r.history) >= g.maxTicks {
		scores = g.grid.m.Scores()
	} else {
		next, err := g.grid.m.Step(r.rng)
		if err == nil {
			g.grid.m = next
			return false, false, nil
		}
		var end *game.GameOver
		if !errors.As(err, &end) {
			panic("room: unexpected step error: " + err.Error())
		}
		scores = end.Scores
	}

	r.final = make([]FinalScore, 0, len(g.roster))
	result = &results.Result{
		RunID:      g.id,
		Room:       r.Name,
		Ticks:      len(r.history),
		FinishedAt: time.Now().UTC(),
	}
	for addr, a := range g.roster {
		r.final = append(r.final, FinalScore{Addr: addr, Name: a.Name, Score: scores[a.ID]})
		result.Scores = append(result.Scores, results.Score{
			Addr:  addr,
			Name:  a.Name,
			ID:    a.ID,
			Score: scores[a.ID],
		})
	}
	sort.Slice(r.final, func(i, j int) bool { return r.final[i].Addr < r.final[j].Addr })
	sort.Slice(result.Scores, func(i, j int) bool { return result.Scores[i].ID < result.Scores[j].ID })

	r.match = nil
	r.phase = Finished
	return true, false, result
}

// detach returns the room to Waiting when g is still its game, which is the
// case when the context given to Start was cancelled rather than Reset.
func (r *Room) detach(g *match) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.match != g {
		return
	}
	r.match = nil
	r.phase = Waiting
	r.final = nil
}

func (r *Room) record(result *results.Result) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.recorder.Record(ctx, result); err != nil {
		logger.Error("Room %q: recording game %s: %v", r.Name, utils.ShortID(result.RunID), err)
	}
}

// abandon drops every connection without a terminal message.
func abandon(sessions []*Session) {
	for _, s := range sessions {
		s.Abort()
	}
}
