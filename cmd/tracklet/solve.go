package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/store"
	"github.com/cellscape/tracklet/track"
)

// detectionFile is the on-disk input format for the solve command: one entry
// per frame, each a list of detections.
type detectionFile struct {
	Frames [][]detectionJSON `json:"frames"`
}

type detectionJSON struct {
	Label        int64     `json:"label"`
	Pos          []float64 `json:"pos"`
	Score        float64   `json:"score"`
	IgnoreAppear bool      `json:"ignore_appear,omitempty"`
}

var solveCmd = &cobra.Command{
	Use:   "solve <detections.json>",
	Short: "Solve a detection file and archive the resulting tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadDetections(args[0])
		if err != nil {
			return err
		}
		return runPipeline(cmd.Context(), args[0], g)
	},
}

// loadDetections reads a detection file and builds the candidate nodes.
// Edges are added later by runPipeline so the solve and demo paths share the
// same graph construction.
func loadDetections(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	var file detectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse detections: %w", err)
	}

	g := graph.New()
	for t, dets := range file.Frames {
		for _, d := range dets {
			n := &graph.Node{
				ID:           graph.NodeID(d.Label),
				Frame:        t,
				Pos:          d.Pos,
				Score:        d.Score,
				IgnoreAppear: d.IgnoreAppear,
			}
			if err := g.AddNode(n); err != nil {
				return nil, fmt.Errorf("frame %d: %w", t, err)
			}
		}
	}
	return g, nil
}

// runPipeline links the candidate graph, solves it with the configured costs
// and constraints, and archives the run under name.
func runPipeline(ctx context.Context, name string, g *graph.Graph) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := graph.AddEdges(g, tuning.GetMaxEdgeDistance()); err != nil {
		return err
	}

	distAttr := graph.AttrDistance
	if drift := tuning.DriftVector; len(drift) > 0 {
		if err := graph.AnnotateDrift(g, drift); err != nil {
			return err
		}
		distAttr = graph.AttrDriftDistance
	} else if tuning.GetUseDrift() {
		drift := graph.EstimateDrift(g)
		if err := graph.AnnotateDrift(g, drift); err != nil {
			return err
		}
		distAttr = graph.AttrDriftDistance
		log.Printf("estimated drift %v", drift)
	}

	s := track.NewSolver(g)
	s.AddCost(&track.NodeSelection{Weight: tuning.GetNodeWeight(), Constant: tuning.GetNodeConstant(), Attr: "score"})
	s.AddCost(&track.EdgeSelection{Weight: tuning.GetEdgeWeight(), Constant: tuning.GetEdgeConstant(), Attr: distAttr})
	s.AddCost(&track.Appear{Constant: tuning.GetAppearConstant()})
	s.AddCost(&track.Split{Constant: tuning.GetSplitConstant()})

	s.AddConstraint(track.EdgeEndpoints{})
	s.AddConstraint(track.MaxParents{N: tuning.GetMaxParents()})
	s.AddConstraint(track.MaxChildren{N: tuning.GetMaxChildren()})
	if tuning.GetFlowSymmetry() {
		s.AddConstraint(track.FlowSymmetry{})
	}

	sol, err := s.Solve(ctx, tuning.GetTimeLimit())
	if err != nil {
		return err
	}
	if sol.TimeLimited {
		log.Printf("time limit hit after %v; solution may be suboptimal", tuning.GetTimeLimit())
	}

	lineage, err := track.SplitDivisions(sol.Graph)
	if err != nil {
		return err
	}
	ids, numTracks := track.AssignTrackIDs(lineage)

	st, err := store.Open(dbPath())
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := st.SaveRun(name, sol, ids, tuning.JSON())
	if err != nil {
		return err
	}

	fmt.Printf("run %s\n", runID)
	fmt.Printf("  objective  %.3f\n", sol.Objective)
	fmt.Printf("  selected   %d nodes, %d edges\n", sol.Graph.NumNodes(), sol.Graph.NumEdges())
	fmt.Printf("  tracks     %d\n", numTracks)
	return nil
}
