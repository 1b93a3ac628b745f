// Package display renders the live terminal view of a running
// simulation: vehicle states, the recent message log, and the rolling
// statistics line, redrawn on a fixed wall-clock cadence. Snapshots
// arrive through a bounded feed so a slow terminal can never stall the
// tick loop.
package display

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/mcb1510/v2v-simulator/internal/bus"
	"github.com/mcb1510/v2v-simulator/internal/channel"
	"github.com/mcb1510/v2v-simulator/internal/sim"
	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// maxVehicleRows caps the vehicle table; bigger fleets show a footer.
const maxVehicleRows = 15

// ansiClear clears the screen and homes the cursor before each frame.
const ansiClear = "\033[2J\033[H"

// Config tunes the renderer.
type Config struct {
	RefreshInterval time.Duration
	MessageRows     int
}

// Renderer draws frames to out until stopped, then prints the final
// summary. It is a sim.SnapshotSink.
type Renderer struct {
	cfg   Config
	out   io.Writer
	fleet *sim.Fleet
	bus   *bus.Bus
	clock *sim.Clock
	feed  *channel.Feed[sim.Snapshot]

	runID    string
	scenario string

	// last is only touched by the render loop after construction.
	last sim.Snapshot

	stop chan struct{}
	done sync.WaitGroup
}

// New creates a renderer. The fleet, bus, and clock are read on every
// frame; out is typically os.Stdout.
func New(cfg Config, fleet *sim.Fleet, b *bus.Bus, clock *sim.Clock, out io.Writer) (*Renderer, error) {
	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("%w: display refresh interval %v must be > 0", sim.ErrInvalidConfig, cfg.RefreshInterval)
	}
	if cfg.MessageRows < 1 {
		return nil, fmt.Errorf("%w: display message rows %d must be >= 1", sim.ErrInvalidConfig, cfg.MessageRows)
	}
	if fleet == nil || b == nil || clock == nil || out == nil {
		return nil, fmt.Errorf("%w: display dependencies incomplete", sim.ErrInvalidConfig)
	}
	return &Renderer{
		cfg:   cfg,
		out:   out,
		fleet: fleet,
		bus:   b,
		clock: clock,
		feed:  channel.NewFeed[sim.Snapshot](8),
		stop:  make(chan struct{}),
	}, nil
}

// SetRun names the run in the frame header.
func (r *Renderer) SetRun(runID, scenario string) {
	r.runID = runID
	r.scenario = scenario
}

// OnSnapshot implements sim.SnapshotSink; it never blocks.
func (r *Renderer) OnSnapshot(s sim.Snapshot) {
	r.feed.Offer(s)
}

// FeedDrops reports how many snapshots the feed discarded because the
// render loop fell behind.
func (r *Renderer) FeedDrops() uint64 {
	return r.feed.Dropped()
}

// Start launches the render loop.
func (r *Renderer) Start() {
	r.done.Add(1)
	go r.loop()
}

// Stop halts the render loop. The screen keeps its last frame.
func (r *Renderer) Stop() {
	close(r.stop)
	r.done.Wait()
}

func (r *Renderer) loop() {
	defer r.done.Done()
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.drainFeed()
			fmt.Fprint(r.out, ansiClear)
			r.renderFrame(r.out)
		case <-r.stop:
			return
		}
	}
}

func (r *Renderer) drainFeed() {
	for {
		select {
		case s := <-r.feed.Receive():
			r.last = s
		default:
			return
		}
	}
}

func (r *Renderer) renderFrame(w io.Writer) {
	fmt.Fprintf(w, "V2V Network Simulator  run %s  scenario %s  %s real-time\n\n",
		r.runID, r.scenario, r.clock.Ratio())

	r.renderVehicles(w)
	fmt.Fprintln(w)
	r.renderMessages(w)
	fmt.Fprintln(w)
	r.renderStats(w)
}

func (r *Renderer) renderVehicles(w io.Writer) {
	states := r.fleet.States()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPOSITION\tSPEED\tHEADING\tSTATE")
	shown := 0
	for _, s := range states {
		if shown == maxVehicleRows {
			break
		}
		state := "active"
		if !s.Active {
			state = "despawned"
		}
		fmt.Fprintf(tw, "%s\t(%.1f, %.1f)\t%.1f m/s\t%.1f°\t%s\n",
			s.ID, s.Position.X, s.Position.Y, s.Speed, s.Heading*180/math.Pi, state)
		shown++
	}
	tw.Flush()

	if len(states) > maxVehicleRows {
		fmt.Fprintf(w, "  showing %d of %d vehicles\n", maxVehicleRows, len(states))
	}
}

func (r *Renderer) renderMessages(w io.Writer) {
	recent := r.bus.Recent()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tFROM\tTO\tDETAIL")
	if len(recent) == 0 {
		fmt.Fprintln(tw, "-\t-\t-\t-\tno messages yet")
	}
	// newest first
	rows := 0
	for i := len(recent) - 1; i >= 0 && rows < r.cfg.MessageRows; i-- {
		kind, from, to, detail := describe(recent[i])
		fmt.Fprintf(tw, "%.2fs\t%s\t%s\t%s\t%s\n", recent[i].SentAt(), kind, from, to, detail)
		rows++
	}
	tw.Flush()
}

func (r *Renderer) renderStats(w io.Writer) {
	s := r.last
	fmt.Fprintf(w, "Sim Time %.2fs | Vehicles %d | BSMs %d (%.1f/s) | CWMs %d | Prevented %d\n",
		s.SimTime, s.VehicleCount, s.BSMSent, s.BSMRate, s.CWMSent, s.CollisionsPrevented)
}

// RenderFinal prints the post-run summary.
func (r *Renderer) RenderFinal(s sim.Snapshot) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(r.out, "\n%s\nSimulation Complete\n%s\n\n", rule, rule)

	tw := tabwriter.NewWriter(r.out, 0, 4, 4, ' ', 0)
	fmt.Fprintf(tw, "Total Simulation Time\t%.2f seconds\n", s.SimTime)
	fmt.Fprintf(tw, "Total Vehicles\t%d\n", s.VehicleCount)
	fmt.Fprintf(tw, "BSM Messages Sent\t%d (%.1f/s)\n", s.BSMSent, s.BSMRate)
	fmt.Fprintf(tw, "CWM Messages Sent\t%d\n", s.CWMSent)
	fmt.Fprintf(tw, "Collisions Prevented\t%d\n", s.CollisionsPrevented)
	tw.Flush()
	fmt.Fprintln(r.out)
}

func describe(m v2v.Message) (kind, from, to, detail string) {
	switch msg := m.(type) {
	case v2v.BasicSafetyMessage:
		return "BSM", msg.Source.String(), "-",
			fmt.Sprintf("pos (%.1f, %.1f) %.1f m/s", msg.Position.X, msg.Position.Y, msg.Speed)
	case v2v.CollisionWarningMessage:
		detail = fmt.Sprintf("ttc %.2fs minSep %.1fm", msg.TimeToClosest, msg.MinSeparation)
		if msg.Mitigated {
			detail += " mitigated"
		}
		return "CWM", msg.Source.String(), msg.Target.String(), detail
	default:
		return m.MessageKind().String(), m.Sender().String(), "-", ""
	}
}
