package nczarr

import (
	"fmt"
	"strconv"
	"strings"
)

// String formats the slice as Slice{start:stop[:stride]|len}; the stride
// is omitted when it is 1.
func (s Slice) String() string {
	var b strings.Builder
	b.WriteString("Slice{")
	writeSlice(&b, s)
	b.WriteString("}")
	return b.String()
}

func writeSlice(b *strings.Builder, s Slice) {
	b.WriteString(strconv.FormatUint(s.Start, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(s.Stop, 10))
	if s.Stride != 1 {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(s.Stride, 10))
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(s.Len, 10))
}

// FormatSlices formats a hyperslab as [a:b|n][c:d:s|m]...
func FormatSlices(slices []Slice) string {
	var b strings.Builder
	for _, s := range slices {
		b.WriteByte('[')
		writeSlice(&b, s)
		b.WriteByte(']')
	}
	return b.String()
}

func (r ChunkRange) String() string {
	return fmt.Sprintf("ChunkRange{start=%d stop=%d}", r.Start, r.Stop)
}

func (p Projection) String() string {
	return fmt.Sprintf("Projection{id=%d,chunkindex=%d,first=%d,last=%d,limit=%d,iopos=%d,iocount=%d,skip=%t,chunkslice=%s,memslice=%s}",
		p.ID, p.ChunkIndex, p.First, p.Last, p.Limit, p.IOPos, p.IOCount, p.Skip,
		FormatSlices([]Slice{p.ChunkSlice}), FormatSlices([]Slice{p.MemSlice}))
}

func (s SliceProjections) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SliceProjection{r=%d range=%s count=%d,projections=[\n", s.R, s.Range, s.Count)
	for i := range s.Projections {
		b.WriteByte('\t')
		b.WriteString(s.Projections[i].String())
		b.WriteByte('\n')
	}
	b.WriteString("]}")
	return b.String()
}

func (o *Odometer) String() string {
	return fmt.Sprintf("Odometer{rank=%d, start=%s stop=%s stride=%s max=%s index=%s offset=%d}",
		o.Rank(), formatVector(o.start), formatVector(o.stop), formatVector(o.stride),
		formatVector(o.shape), formatVector(o.index), o.Offset())
}

func (d IODescriptor) String() string {
	return fmt.Sprintf("IODescriptor{chunk=%s chunkranges=%s memranges=%s}",
		formatVector(d.ChunkCoord), FormatSlices(d.ChunkRanges), FormatSlices(d.MemRanges))
}

// formatVector formats v as (a,b,c).
func formatVector(v []uint64) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(x, 10))
	}
	b.WriteByte(')')
	return b.String()
}
