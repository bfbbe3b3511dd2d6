package attest

import (
	"go.dedis.ch/kyber/v3/suites"
)

// Suite is the group used for viewing keys, the encryption envelopes and
// the onet service.
var Suite = suites.MustFind("Ed25519")
