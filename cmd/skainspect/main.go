package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"ska-importer/internal/mathutil"
	"ska-importer/internal/retarget"
	"ska-importer/internal/ska"
	"ska-importer/internal/skeleton"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("skainspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	skelPath := fs.String("skeleton", "", "Also retarget onto this skeleton description")
	tracks := fs.Bool("tracks", false, "Print every track entry")
	grid := fs.Bool("grid", false, "Dump the raw key offset grid")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var skel *skeleton.Skeleton
	if *skelPath != "" {
		var err error
		if skel, err = skeleton.Load(*skelPath); err != nil {
			fmt.Fprintf(stderr, "Skeleton error: %v\n", err)
			return 1
		}
		printSkeleton(stdout, *skelPath, skel)
	}

	status := 0
	for _, arg := range fs.Args() {
		anim, err := ska.Parse(arg)
		if err != nil {
			fmt.Fprintf(stderr, "Parse error %s: %v\n", arg, err)
			status = 1
			continue
		}
		printAnimation(stdout, arg, anim, *tracks)
		if *grid {
			printGrid(stdout, &anim.Grid)
		}
		if skel != nil {
			printRetarget(stdout, retarget.Retarget(anim, skel))
		}
	}
	return status
}

func printAnimation(w io.Writer, name string, anim *ska.Animation, verbose bool) {
	h := anim.Header
	l := h.Layout()
	fmt.Fprintf(w, "\n=== %s (magic=%s flags=0x%08x) ===\n", name, h.MagicString(), h.Flags)
	fmt.Fprintf(w, "  bones=%d times=%d slots=%d keyframes=%d scale=(%g,%g,%g)\n",
		h.BoneCount, h.TimeCount, h.SlotCount(), h.KeyframeCount, h.Scale[0], h.Scale[1], h.Scale[2])
	fmt.Fprintf(w, "  layout: keyframes=%dB times=%dB grid=%dB total=%dB\n", l.Keyframes, l.Times, l.Grid, l.Total)

	if len(anim.Times) > 0 {
		times := make([]float64, len(anim.Times))
		for i, t := range anim.Times {
			times[i] = float64(t)
		}
		fmt.Fprintf(w, "  times: min=%g max=%g", floats.Min(times), floats.Max(times))
		if len(times) > 1 {
			steps := make([]float64, len(times)-1)
			for i := range steps {
				steps[i] = times[i+1] - times[i]
			}
			if len(steps) > 1 {
				mean, std := stat.MeanStdDev(steps, nil)
				fmt.Fprintf(w, " step=%.4g±%.2g", mean, std)
			} else {
				fmt.Fprintf(w, " step=%.4g", steps[0])
			}
		}
		fmt.Fprintln(w)
	}

	degenerate, unresolved := 0, 0
	for _, k := range anim.Keyframes {
		q := k.Quat
		if q[0]*q[0]+q[1]*q[1]+q[2]*q[2]+q[3]*q[3] <= 1e-12 {
			degenerate++
		}
		if !k.HasTime {
			unresolved++
		}
	}
	fmt.Fprintf(w, "  keyframes: degenerate=%d unresolved_time=%d\n", degenerate, unresolved)

	for _, tr := range anim.Tracks {
		if len(tr.Entries) == 0 {
			fmt.Fprintf(w, "  Bone[%d]: empty\n", tr.Bone)
			continue
		}
		reach := 0.0
		for _, e := range tr.Entries {
			reach = max(reach, r3.Norm(r3.Vec{X: e.Translation[0], Y: e.Translation[1], Z: e.Translation[2]}))
		}
		first, last := tr.Entries[0], tr.Entries[len(tr.Entries)-1]
		fmt.Fprintf(w, "  Bone[%d]: entries=%d first_slot=%d last_slot=%d max|t|=%.4g\n",
			tr.Bone, len(tr.Entries), first.Slot, last.Slot, reach)
		if !verbose {
			continue
		}
		for _, e := range tr.Entries {
			t := "-"
			if e.HasTime {
				t = fmt.Sprintf("%g", e.Time)
			}
			fmt.Fprintf(w, "    slot=%d t=%s q=(%.4f,%.4f,%.4f,%.4f) t=(%.4g,%.4g,%.4g)\n",
				e.Slot, t, e.Quat[0], e.Quat[1], e.Quat[2], e.Quat[3],
				e.Translation[0], e.Translation[1], e.Translation[2])
		}
	}
}

func printSkeleton(w io.Writer, name string, skel *skeleton.Skeleton) {
	fmt.Fprintf(w, "=== SKELETON %s (%d bones) ===\n", name, skel.Len())
	for i, m := range skel.RestMatrices() {
		b := skel.Bone(i)
		parent := "-"
		if b.Parent >= 0 {
			parent = skel.Bone(b.Parent).Name
		}
		id := "-"
		if b.HasID {
			id = fmt.Sprint(b.ID)
		}
		t := mathutil.Translation(m)
		fmt.Fprintf(w, "  [%d] %s id=%s parent=%s rest=(%.4g,%.4g,%.4g)\n", i, b.Name, id, parent, t[0], t[1], t[2])
	}
}

// printGrid writes one row per slot. Empty cells print as "-" and indices
// past the keyframe pool are marked with "!".
func printGrid(w io.Writer, g *ska.KeyOffsetGrid) {
	fmt.Fprintf(w, "--- GRID (%d slots x %d bones) ---\n", g.Slots(), g.Bones())
	for s := 0; s < g.Slots(); s++ {
		fmt.Fprintf(w, "  slot %d:", s)
		for b := 0; b < g.Bones(); b++ {
			v := g.Raw(s, b)
			switch _, ok := g.Resolve(s, b); {
			case v == ska.NoKey:
				fmt.Fprint(w, " -")
			case !ok:
				fmt.Fprintf(w, " !%d", v)
			default:
				fmt.Fprintf(w, " %d", v)
			}
		}
		fmt.Fprintln(w)
	}
}

func printRetarget(w io.Writer, res *retarget.Result) {
	rot, trans := res.SampleCounts()
	fmt.Fprintf(w, "--- RETARGET (mapping=%s frames=%d..%d) ---\n", res.Mapping, res.Range.Start, res.Range.End)
	fmt.Fprintf(w, "  bones=%d skipped=%d rotation_samples=%d translation_samples=%d\n",
		len(res.Bones), res.Skipped(), rot, trans)
	for _, n := range res.Notices {
		fmt.Fprintf(w, "  [%s] %s\n", n.Kind, n.Message)
	}
}
