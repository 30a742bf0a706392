package beacon

import "strconv"

// Prefix is the session-level metadata prepended to every beacon chunk
// (spec §6, "a prefix chunk (session-level metadata) followed by the
// concatenation of records").
type Prefix struct {
	ApplicationID string
	DeviceID      string
	SessionNumber int32
	Multiplicity  int
}

// Encode renders the prefix as a `&`-delimited key=value sequence, using the
// same codec as record payloads so a chunk is a single homogeneous wire
// format.
func (p Prefix) Encode() string {
	return EncodePairs([]Pair{
		{Key: "ap", Value: p.ApplicationID},
		{Key: "vi", Value: p.DeviceID},
		{Key: "sn", Value: strconv.Itoa(int(p.SessionNumber))},
		{Key: "mp", Value: strconv.Itoa(p.Multiplicity)},
	})
}
