package ucprof

import (
	"github.com/sirupsen/logrus"
)

// Default firmware address range of the reference target.
const (
	DefaultFirmwareBase uint32 = 0x90000000
	DefaultFirmwareSize uint32 = 0x800000
)

// BuildOptions controls which packets become events.
type BuildOptions struct {
	FirmwareBase uint32
	FirmwareSize uint32
	Begin        *float64 // drop events before this timestamp
	End          *float64 // stop at the first event after this timestamp
	Log          logrus.Ext1FieldLogger
}

func (o BuildOptions) inFirmware(addr uint32) bool {
	return addr >= o.FirmwareBase && uint64(addr) < uint64(o.FirmwareBase)+uint64(o.FirmwareSize)
}

// BuildEvents symbolicates packets in order and returns the events together
// with the normalizer state after the last consumed packet.
//
// Every packet passes through the normalizer, interrupts included, so wrap
// detection sees the complete counter sequence. Interrupt packets and packets
// outside the firmware range produce no event.
func BuildEvents(table *SymbolTable, norm Normalizer, packets []Packet, opts BuildOptions) ([]Event, Normalizer) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	events := make([]Event, 0, len(packets))
	for idx, p := range packets {
		var ts float64
		norm, ts = norm.Next(p.CycleCount)

		if IsInterrupt(p.Context) {
			log.Tracef("packet %d skipped - interrupt", idx)
			continue
		}
		if !opts.inFirmware(p.Address) {
			log.Tracef("packet %d skipped - not in firmware, %08x", idx, p.Address)
			continue
		}

		ev := Event{
			Timestamp: ts,
			Type:      p.Type,
			Context:   p.Context,
		}
		if sym, ok := table.Resolve(p.Address); ok {
			ev.Name = sym.Name
			ev.File = sym.File
			ev.Line = sym.Line
		} else {
			ev.Name = placeholderName(p.Address)
		}

		if opts.Begin != nil && ev.Timestamp < *opts.Begin {
			log.Tracef("packet %d skipped - before begin", idx)
			continue
		}
		if opts.End != nil && ev.Timestamp > *opts.End {
			log.Debugf("packet %d is past end, stopping", idx)
			break
		}

		events = append(events, ev)
		log.Tracef("%.9f %08x %s %s %08x", ev.Timestamp, p.Address, ev.Type, ev.Name, ev.Context)
	}

	log.Infof("Events parsed: %d", len(events))
	return events, norm
}
