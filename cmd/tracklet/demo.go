package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/cellscape/tracklet/graph"
)

var (
	flagDemoFrames int
	flagDemoSeed   int64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Solve a synthetic scenario and archive it",
	Long: `Demo generates a small synthetic scenario: two drifting objects plus
one that divides halfway through, with jittered positions. It then runs the
regular solve pipeline on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := demoGraph(flagDemoFrames, flagDemoSeed)
		if err != nil {
			return err
		}
		return runPipeline(cmd.Context(), "demo", g)
	},
}

func init() {
	demoCmd.Flags().IntVar(&flagDemoFrames, "frames", 6, "number of frames to generate")
	demoCmd.Flags().Int64Var(&flagDemoSeed, "seed", 1, "jitter seed")
}

// demoGraph builds the synthetic candidate nodes: object 1 and object 2 move
// with a shared drift, object 3 divides at the halfway frame.
func demoGraph(frames int, seed int64) (*graph.Graph, error) {
	if frames < 2 {
		return nil, fmt.Errorf("demo needs at least 2 frames, got %d", frames)
	}
	rng := rand.New(rand.NewSource(seed))
	jitter := func() float64 { return rng.Float64() - 0.5 }
	drift := []float64{3, 1}

	g := graph.New()
	label := int64(1)
	add := func(t int, x, y float64) error {
		n := &graph.Node{
			ID:    graph.NodeID(label),
			Frame: t,
			Pos:   []float64{x + jitter(), y + jitter()},
			Score: 1,
		}
		label++
		return g.AddNode(n)
	}

	split := frames / 2
	for t := 0; t < frames; t++ {
		dx := drift[0] * float64(t)
		dy := drift[1] * float64(t)
		if err := add(t, 10+dx, 10+dy); err != nil {
			return nil, err
		}
		if err := add(t, 40+dx, 25+dy); err != nil {
			return nil, err
		}
		// The third object: one detection before the division, two after.
		if t < split {
			if err := add(t, 70+dx, 40+dy); err != nil {
				return nil, err
			}
		} else {
			off := 2 + 1.5*float64(t-split)
			if err := add(t, 70+dx-off, 40+dy); err != nil {
				return nil, err
			}
			if err := add(t, 70+dx+off, 40+dy); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
