// Package mirror implements the per-PLC change-detection and
// conflict-resolution loop: for one synchronizer, it reads both sides
// of a mapped register block each tick, decides which side changed,
// and writes the winner to the loser.
package mirror

import "github.com/plcbridge/srtpmb/pkg/protocol/srtp"

// Mapping is an immutable description of one contiguous register block
// shared between a PLC memory area and a Modbus holding-register range.
type Mapping struct {
	PlcArea     srtp.Area
	PlcStart    int // 1-based PLC word index
	ModbusStart int // 0-based Modbus holding-register index
	Count       int
	SwapBytes   bool
}

// Area is the runtime scratch state for one Mapping, owned exclusively
// by the Synchronizer that created it. last_plc and last_mb are each
// kept in their own side's native domain (no swap applied), so a
// straight equality check against the latest read is enough to detect
// a change on that side.
type Area struct {
	Mapping Mapping
	lastPlc []uint16
	lastMb  []uint16
}

// NewArea allocates an Area for m. The snapshots start as m.Count zero
// words and are populated by the synchronizer's Initialize pass.
func NewArea(m Mapping) *Area {
	return &Area{
		Mapping: m,
		lastPlc: make([]uint16, m.Count),
		lastMb:  make([]uint16, m.Count),
	}
}

// byteswap reverses the two bytes of a 16-bit word.
func byteswap(v uint16) uint16 {
	return v<<8 | v>>8
}
