package service

import (
	"crypto/sha256"
	"sync"
	"time"

	"go.dedis.ch/attest"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/network"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// MaxClockSkew is how far the timestamp of an authenticated request may be
// from the clock of the node.
const MaxClockSkew = 60 * time.Second

// Authenticated is implemented by the requests that use the keys of the
// node wallet.
type Authenticated interface {
	authorization() *Authorization
	setAuthorization(a *Authorization)
}

func (req *SignData) authorization() *Authorization { return req.Auth }
func (req *SignData) setAuthorization(a *Authorization) { req.Auth = a }
func (req *SignHash) authorization() *Authorization { return req.Auth }
func (req *SignHash) setAuthorization(a *Authorization) { req.Auth = a }
func (req *SignMessage) authorization() *Authorization { return req.Auth }
func (req *SignMessage) setAuthorization(a *Authorization) { req.Auth = a }
func (req *SignFile) authorization() *Authorization { return req.Auth }
func (req *SignFile) setAuthorization(a *Authorization) { req.Auth = a }
func (req *DecryptData) authorization() *Authorization { return req.Auth }
func (req *DecryptData) setAuthorization(a *Authorization) { req.Auth = a }

// SignRequest authenticates the request with the key pair of the client.
// The signature covers the type and every field of the request, including
// the public key and the timestamp.
func SignRequest(req Authenticated, kp *key.Pair) error {
	pub, err := kp.Public.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("marshaling public key: %v", err)
	}
	a := &Authorization{Client: pub, Timestamp: time.Now().Unix()}
	req.setAuthorization(a)
	msg, err := requestHash(req)
	if err != nil {
		return err
	}
	a.Signature, err = schnorr.Sign(attest.Suite, kp.Private, msg)
	if err != nil {
		return xerrors.Errorf("signing request: %v", err)
	}
	return nil
}

// requestHash returns the hash of the request with an empty signature.
func requestHash(req Authenticated) ([]byte, error) {
	a := req.authorization()
	sig := a.Signature
	a.Signature = nil
	buf, err := protobuf.Encode(req)
	a.Signature = sig
	if err != nil {
		return nil, attest.InputError("couldn't encode request: %v", err)
	}
	h := sha256.New()
	h.Write([]byte(network.MessageType(req).String()))
	h.Write(buf)
	return h.Sum(nil), nil
}

// replayCache remembers the signatures of the accepted requests while their
// timestamp is within MaxClockSkew.
type replayCache struct {
	sync.Mutex
	seen map[string]int64
}

// add returns false if the signature has been seen before.
func (rc *replayCache) add(sig []byte, ts int64, now time.Time) bool {
	rc.Lock()
	defer rc.Unlock()
	if rc.seen == nil {
		rc.seen = make(map[string]int64)
	}
	limit := now.Add(-2 * MaxClockSkew).Unix()
	for k, t := range rc.seen {
		if t < limit {
			delete(rc.seen, k)
		}
	}
	if _, ok := rc.seen[string(sig)]; ok {
		return false
	}
	rc.seen[string(sig)] = ts
	return true
}

// authorise returns nil if the request is signed by one of the configured
// clients, with a fresh timestamp, and hasn't been used before.
func (s *Service) authorise(req Authenticated) error {
	a := req.authorization()
	if a == nil || len(a.Signature) == 0 {
		return attest.AuthorizationError("request is not authenticated")
	}
	if !s.config().Authorised(a.Client) {
		return attest.AuthorizationError("client %x is not authorised", a.Client)
	}
	now := time.Now()
	skew := now.Sub(time.Unix(a.Timestamp, 0))
	if skew > MaxClockSkew || skew < -MaxClockSkew {
		return attest.AuthorizationError("request timestamp is %s off", skew)
	}
	pub := attest.Suite.Point()
	if err := pub.UnmarshalBinary(a.Client); err != nil {
		return attest.AuthorizationError("invalid client key: %v", err)
	}
	msg, err := requestHash(req)
	if err != nil {
		return err
	}
	if err := schnorr.Verify(attest.Suite, pub, msg, a.Signature); err != nil {
		return attest.AuthorizationError("wrong request signature: %v", err)
	}
	if !s.replays.add(a.Signature, a.Timestamp, now) {
		return attest.AuthorizationError("request has already been used")
	}
	return nil
}
