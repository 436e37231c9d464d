package midi

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// ListenExternal relays note events from an input port. Events are dropped when the
// channel is full so a slow UI never blocks the driver callback.
func ListenExternal(portName string, events chan<- NoteEvent) (stop func(), err error) {
	in, err := gomidi.FindInPort(portName)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("find in port "+portName, "MIDI input "+portName+" is not available"))
	}
	stop, err = gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		ev, ok := ParseNote(msg)
		if !ok {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("listen to "+portName))
	}
	return stop, nil
}
