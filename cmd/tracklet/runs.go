package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellscape/tracklet/store"
)

var flagRunsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived solve runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(dbPath())
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(flagRunsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs")
			return nil
		}
		for _, r := range runs {
			when := time.Unix(0, r.CreatedAtNs).Format(time.RFC3339)
			limited := ""
			if r.TimeLimited {
				limited = " (time limited)"
			}
			fmt.Printf("%s  %s  %-20s  obj %.3f  %d tracks%s\n",
				r.RunID, when, r.Name, r.Objective, r.NumTracks, limited)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id> [track-id]",
	Short: "Show one run, or the points of one of its tracks",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(dbPath())
		if err != nil {
			return err
		}
		defer st.Close()

		r, err := st.GetRun(args[0])
		if err != nil {
			return err
		}

		if len(args) == 1 {
			fmt.Printf("run %s (%s)\n", r.RunID, r.Name)
			fmt.Printf("  created    %s\n", time.Unix(0, r.CreatedAtNs).Format(time.RFC3339))
			fmt.Printf("  objective  %.3f\n", r.Objective)
			fmt.Printf("  graph      %d nodes, %d edges\n", r.NumNodes, r.NumEdges)
			fmt.Printf("  tracks     %d\n", r.NumTracks)
			if r.TimeLimited {
				fmt.Println("  time limit hit; solution may be suboptimal")
			}
			fmt.Printf("  params     %s\n", r.Params)
			return nil
		}

		trackID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad track id %q: %w", args[1], err)
		}
		points, err := st.TrackPoints(r.RunID, trackID)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			return fmt.Errorf("run %s has no track %d", r.RunID, trackID)
		}
		for _, p := range points {
			fmt.Printf("frame %3d  node %4d  (%.2f, %.2f, %.2f)  score %.3f\n",
				p.Frame, p.NodeID, p.X, p.Y, p.Z, p.Score)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 20, "maximum runs to list")
}
