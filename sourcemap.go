package beaker

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SourceMap relates program counters to source lines.
type SourceMap struct {
	pcToLine  map[int]int
	lineToPCs map[int][]int
}

// NewSourceMap builds a source map from a pc -> line table.
func NewSourceMap(pcToLine map[int]int) *SourceMap {
	sm := &SourceMap{
		pcToLine:  make(map[int]int, len(pcToLine)),
		lineToPCs: make(map[int][]int),
	}
	for pc, line := range pcToLine {
		sm.pcToLine[pc] = line
		sm.lineToPCs[line] = append(sm.lineToPCs[line], pc)
	}
	for _, pcs := range sm.lineToPCs {
		sort.Ints(pcs)
	}
	return sm
}

type rawSourceMap struct {
	Version  int    `json:"version"`
	Mappings string `json:"mappings"`
}

// DecodeSourceMap parses the source map JSON returned by algod. Each
// ";"-separated segment of mappings describes one pc; the third VLQ field is
// the line delta. Empty segments stay on the previous line.
func DecodeSourceMap(raw []byte) (*SourceMap, error) {
	var rsm rawSourceMap
	if err := json.Unmarshal(raw, &rsm); err != nil {
		return nil, fmt.Errorf("beaker: decode source map: %w", err)
	}
	return decodeMappings(rsm.Mappings)
}

func decodeMappings(mappings string) (*SourceMap, error) {
	pcToLine := make(map[int]int)
	line := 0
	for pc, chunk := range strings.Split(mappings, ";") {
		if chunk != "" {
			fields, err := decodeVLQ(chunk)
			if err != nil {
				return nil, fmt.Errorf("beaker: decode source map pc %d: %w", pc, err)
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("beaker: decode source map pc %d: segment %q has %d fields", pc, chunk, len(fields))
			}
			line += fields[2]
		}
		pcToLine[pc] = line
	}
	return NewSourceMap(pcToLine), nil
}

const vlqAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// decodeVLQ decodes a base64 VLQ segment into its signed fields.
func decodeVLQ(segment string) ([]int, error) {
	var (
		out   []int
		value int
		shift uint
	)
	for i := 0; i < len(segment); i++ {
		digit := strings.IndexByte(vlqAlphabet, segment[i])
		if digit < 0 {
			return nil, fmt.Errorf("invalid VLQ character %q", segment[i])
		}
		value += (digit & 31) << shift
		if digit&32 != 0 {
			shift += 5
			continue
		}
		if value&1 != 0 {
			out = append(out, -(value >> 1))
		} else {
			out = append(out, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("truncated VLQ segment %q", segment)
	}
	return out, nil
}

// PCsForLine returns the pcs generated by a source line, ascending.
func (sm *SourceMap) PCsForLine(line int) []int {
	return append([]int(nil), sm.lineToPCs[line]...)
}

// LineForPC returns the source line that produced pc.
func (sm *SourceMap) LineForPC(pc int) (int, bool) {
	line, ok := sm.pcToLine[pc]
	return line, ok
}

// Len returns the number of mapped pcs.
func (sm *SourceMap) Len() int {
	return len(sm.pcToLine)
}
