// Package main provides a command-line utility to inspect NCZarr chunk
// planning and stored chunks.
//
// Usage:
//
//	nczarr plan --shape 10,5 --chunks 4,5 --start 1,0 --count 4,5 --stride 2,1
//	nczarr dump --config store.toml --shape 10,5 --chunks 4,5 --elemsize 4 --chunk 1,0
//	nczarr codecs
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scigolib/nczarr"
	"github.com/scigolib/nczarr/internal/codec"
	"github.com/scigolib/nczarr/internal/logging"
)

func main() {
	cmd := newRootCmd(os.Stdout)
	err := cmd.Execute()
	logging.Shutdown()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "nczarr",
		Short:         "Inspect NCZarr chunk plans and stored chunks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.AddCommand(newPlanCmd(), newDumpCmd(), newCodecsCmd())
	return root
}

func toUint64s(v []uint) []uint64 {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(x)
	}
	return out
}

type planFlags struct {
	shape, chunks         []uint
	start, count, stride  []uint
	elemSize              uint
	descriptors, byteRuns bool
}

func newPlanCmd() *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the per-dimension projections and chunk descriptors of a hyperslab",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.UintSliceVar(&f.shape, "shape", nil, "variable dimension lengths, e.g. 10,5")
	fl.UintSliceVar(&f.chunks, "chunks", nil, "chunk lengths, e.g. 4,5")
	fl.UintSliceVar(&f.start, "start", nil, "first selected index per dimension (default 0s)")
	fl.UintSliceVar(&f.count, "count", nil, "selected count per dimension (default the whole variable)")
	fl.UintSliceVar(&f.stride, "stride", nil, "stride per dimension (default 1s)")
	fl.UintVar(&f.elemSize, "elemsize", 1, "element size in bytes")
	fl.BoolVar(&f.descriptors, "descriptors", true, "print the chunk descriptor stream")
	fl.BoolVar(&f.byteRuns, "bytes", false, "print the byte runs each descriptor touches")
	_ = cmd.MarkFlagRequired("shape")
	_ = cmd.MarkFlagRequired("chunks")
	return cmd
}

func runPlan(out io.Writer, f planFlags) error {
	shape := nczarr.VarShape{
		Dimlens:   toUint64s(f.shape),
		Chunklens: toUint64s(f.chunks),
		ElemSize:  uint64(f.elemSize),
	}
	if err := shape.Validate(); err != nil {
		return err
	}

	sel := nczarr.HyperslabSelection{
		Start: toUint64s(f.start),
		Count: toUint64s(f.count),
	}
	if f.start == nil {
		sel.Start = make([]uint64, shape.Rank())
	}
	if f.count == nil && len(sel.Start) == shape.Rank() {
		sel.Count = make([]uint64, shape.Rank())
		for i := range sel.Count {
			sel.Count[i] = shape.Dimlens[i] - min(sel.Start[i], shape.Dimlens[i])
		}
	}
	if f.stride != nil {
		sel.Stride = toUint64s(f.stride)
	}

	slices, err := sel.Slices(shape.Dimlens)
	if err != nil {
		return err
	}
	walker, err := nczarr.Plan(slices, shape)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "slices: %s\n", nczarr.FormatSlices(slices))
	for _, set := range walker.Sets() {
		fmt.Fprintln(out, set)
	}

	descs := walker.Descriptors()
	var elements uint64
	for _, d := range descs {
		elements += d.ElementCount()
		if !f.descriptors {
			continue
		}
		fmt.Fprintln(out, d)
		if f.byteRuns {
			runs, err := d.ByteRanges(shape.Chunklens, shape.ElemSize)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "\tbytes [%d, %d)\n", r.Offset, r.Offset+r.Length)
			}
		}
	}

	fmt.Fprintf(out, "%s descriptor(s) of %s candidate chunk(s), %s element(s), %s\n",
		humanize.Comma(int64(len(descs))),
		humanize.Comma(int64(walker.MaxDescriptors())), //nolint:gosec // G115: display only
		humanize.Comma(int64(elements)),                //nolint:gosec // G115: display only
		humanize.Bytes(elements*shape.ElemSize))
	return nil
}

type dumpFlags struct {
	config        string
	shape, chunks []uint
	chunk         []uint
	elemSize      uint
	prefix        string
	offset        uint64
	length        uint64
}

func newDumpCmd() *cobra.Command {
	var f dumpFlags
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Hex-dump a decoded chunk from a configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDump(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "TOML configuration of the store (default in-memory)")
	fl.UintSliceVar(&f.shape, "shape", nil, "variable dimension lengths")
	fl.UintSliceVar(&f.chunks, "chunks", nil, "chunk lengths")
	fl.UintSliceVar(&f.chunk, "chunk", nil, "chunk coordinate, e.g. 1,0 (empty for a scalar)")
	fl.UintVar(&f.elemSize, "elemsize", 1, "element size in bytes")
	fl.StringVar(&f.prefix, "prefix", "", "chunk key prefix, e.g. temperature/")
	fl.Uint64Var(&f.offset, "offset", 0, "byte offset in the decoded chunk to start dumping from")
	fl.Uint64Var(&f.length, "length", 128, "number of bytes to dump")
	return cmd
}

func runDump(ctx context.Context, out io.Writer, f dumpFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := nczarr.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = nczarr.LoadConfig(f.config); err != nil {
			return err
		}
		if err := cfg.Log.SetLogger(); err != nil {
			return err
		}
	}

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Errorf("close store: %v", err)
		}
	}()

	opts, err := cfg.ArrayOptions()
	if err != nil {
		return err
	}
	opts = append(opts, nczarr.WithStore(st), nczarr.WithKeyPrefix(f.prefix))
	arr, err := nczarr.NewArray(nczarr.VarShape{
		Dimlens:   toUint64s(f.shape),
		Chunklens: toUint64s(f.chunks),
		ElemSize:  uint64(f.elemSize),
	}, opts...)
	if err != nil {
		return err
	}

	coord := toUint64s(f.chunk)
	data, err := arr.ReadChunk(ctx, coord)
	if err != nil {
		return err
	}

	size := uint64(len(data))
	if f.length < 1 {
		return fmt.Errorf("invalid length: %d", f.length)
	}
	if f.offset >= size {
		return fmt.Errorf("invalid offset: %d (chunk size: %d)", f.offset, size)
	}
	n := min(f.length, size-f.offset)
	if n < f.length {
		fmt.Fprintf(out, "Warning: requested length %d exceeds available bytes (%d). Dumping %d bytes.\n",
			f.length, size-f.offset, n)
	}

	fmt.Fprintf(out, "Chunk %s (%s, extent %v, edge=%t)\n",
		arr.ChunkKey(coord), humanize.Bytes(size), arr.Grid().ChunkExtent(coord), arr.Grid().IsEdgeChunk(coord))
	fmt.Fprintf(out, "Dumping %d bytes at offset 0x%x (%d):\n", n, f.offset, f.offset)
	hexDump(out, data[f.offset:f.offset+n], f.offset)
	return nil
}

// hexDump writes buf 16 bytes per line with an ASCII column.
func hexDump(out io.Writer, buf []byte, base uint64) {
	for i := 0; i < len(buf); i += 16 {
		line := buf[i:min(i+16, len(buf))]

		var b strings.Builder
		fmt.Fprintf(&b, "%08x: ", base+uint64(i))
		for j := 0; j < 16; j++ {
			if j < len(line) {
				fmt.Fprintf(&b, "%02x ", line[j])
			} else {
				b.WriteString("   ")
			}
			if j == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range line {
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
		io.WriteString(out, b.String()) //nolint:errcheck
	}
}

func newCodecsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codecs",
		Short: "List the available chunk codecs",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, id := range codec.Default.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		},
	}
}
