package beaker

const (
	// PageSize is the size of one application program page.
	PageSize = 2048

	// MaxExtraPages is the most extra pages an application may request.
	MaxExtraPages = 3
)

// SplitPages cuts bin into consecutive chunks of size bytes. The last chunk
// may be shorter; an empty bin yields no chunks.
func SplitPages(bin []byte, size int) [][]byte {
	if size <= 0 {
		size = PageSize
	}
	pages := make([][]byte, 0, (len(bin)+size-1)/size)
	for start := 0; start < len(bin); start += size {
		end := min(start+size, len(bin))
		pages = append(pages, bin[start:end:end])
	}
	return pages
}

// ExtraPages returns the extra pages needed beyond the first for an
// approval and clear program pair.
func ExtraPages(approval, clear []byte) int {
	total := len(approval) + len(clear)
	pages := (total + PageSize - 1) / PageSize
	if pages <= 1 {
		return 0
	}
	return pages - 1
}
