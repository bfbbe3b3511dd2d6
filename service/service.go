// Package service exposes signing, verification and decryption as an onet
// service. The wallet of the service is kept in the database of the node.
package service

import (
	"encoding/hex"
	"sync"

	"github.com/pborman/uuid"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/config"
	"go.dedis.ch/attest/decrypt"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/attest/signer"
	"go.dedis.ch/attest/store"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ServiceName is the name used to register the service.
const ServiceName = "Attest"

// Used for tests
var attestID onet.ServiceID

func init() {
	var err error
	attestID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
}

// Service signs and decrypts data with the wallet of the node.
type Service struct {
	*onet.ServiceProcessor

	wallet *store.Store
	// confMutex protects the configuration.
	confMutex sync.Mutex
	conf      *config.Config
	replays   replayCache
}

// Wallet returns the store holding the keys and identities of the node.
func (s *Service) Wallet() *store.Store {
	return s.wallet
}

// SetConfig replaces the system, the default hash types and the file
// policy of the service.
func (s *Service) SetConfig(c *config.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.confMutex.Lock()
	defer s.confMutex.Unlock()
	cp := *c
	cp.Clients = append([]string{}, c.Clients...)
	s.conf = &cp
	return nil
}

// AuthoriseClient adds a client to the list of clients allowed to use the
// keys of the wallet. It should be called by the administrator of the node.
func (s *Service) AuthoriseClient(pub kyber.Point) error {
	buf, err := pub.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("marshaling client key: %v", err)
	}
	s.confMutex.Lock()
	defer s.confMutex.Unlock()
	if s.conf.Authorised(buf) {
		return xerrors.New("client already authorised")
	}
	cp := *s.conf
	cp.Clients = append(append([]string{}, s.conf.Clients...), hex.EncodeToString(buf))
	s.conf = &cp
	return nil
}

func (s *Service) config() *config.Config {
	s.confMutex.Lock()
	defer s.confMutex.Unlock()
	cp := *s.conf
	return &cp
}

func (s *Service) signer() *signer.Signer {
	c := s.config()
	return &signer.Signer{
		SystemID: c.SystemID(),
		Keys:     s.wallet,
		Registry: s.wallet,
		Chain:    s.wallet,
		Policy:   c.Policy(),
	}
}

// hashTypes parses the names of the request, using the configured types
// for empty names.
func (s *Service) hashTypes(ht, mht string) (digest.Type, digest.Type, error) {
	h, m := s.config().HashTypes()
	var err error
	if ht != "" {
		if h, err = digest.ParseType(ht); err != nil {
			return 0, 0, err
		}
	}
	if mht != "" {
		if m, err = digest.ParseType(mht); err != nil {
			return 0, 0, err
		}
	}
	return h, m, nil
}

func point(buf []byte) (kyber.Point, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	p := attest.Suite.Point()
	if err := p.UnmarshalBinary(buf); err != nil {
		return nil, attest.InputError("invalid viewing key: %v", err)
	}
	return p, nil
}

func scalar(buf []byte) (kyber.Scalar, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	sc := attest.Suite.Scalar()
	if err := sc.UnmarshalBinary(buf); err != nil {
		return nil, attest.InputError("invalid viewing key: %v", err)
	}
	return sc, nil
}

// SignData signs one or more items.
func (s *Service) SignData(req *SignData) (*SignDataReply, error) {
	id := uuid.NewRandom()
	log.Lvlf2("%s: signdata of %d items for %s", id, len(req.Items), req.Destination)
	if err := s.authorise(req); err != nil {
		log.Lvlf2("%s: refused: %v", id, err)
		return nil, err
	}
	h, m, err := s.hashTypes(req.HashType, req.MMRHashType)
	if err != nil {
		return nil, err
	}
	to, err := point(req.EncryptTo)
	if err != nil {
		return nil, err
	}
	return s.sign(id, &signer.Request{
		Destination:    req.Destination,
		Items:          req.Items,
		HashType:       h,
		MMRHashType:    m,
		CreateMMR:      req.CreateMMR,
		Salts:          req.Salts,
		Salted:         req.Salted,
		PriorSignature: req.PriorSignature,
		BlockHeight:    req.BlockHeight,
		EncryptTo:      to,
		ReturnKeys:     req.ReturnKeys,
	})
}

// SignHash signs a precomputed hash.
func (s *Service) SignHash(req *SignHash) (*SignDataReply, error) {
	id := uuid.NewRandom()
	log.Lvlf2("%s: signhash for %s", id, req.Destination)
	if err := s.authorise(req); err != nil {
		log.Lvlf2("%s: refused: %v", id, err)
		return nil, err
	}
	hash, err := digest.HashFromBytes(req.Hash)
	if err != nil {
		return nil, err
	}
	return s.sign(id, &signer.Request{
		Destination: req.Destination,
		Items:       []*canon.Item{canon.NewHash(hash)},
	})
}

// SignMessage signs a text message.
func (s *Service) SignMessage(req *SignMessage) (*SignDataReply, error) {
	id := uuid.NewRandom()
	log.Lvlf2("%s: signmessage for %s", id, req.Destination)
	if err := s.authorise(req); err != nil {
		log.Lvlf2("%s: refused: %v", id, err)
		return nil, err
	}
	h, _, err := s.hashTypes(req.HashType, "")
	if err != nil {
		return nil, err
	}
	return s.sign(id, &signer.Request{
		Destination: req.Destination,
		Items:       []*canon.Item{canon.NewMessage(req.Message)},
		HashType:    h,
	})
}

// SignFile signs a file stored on the node. It fails unless the node
// allows access to files.
func (s *Service) SignFile(req *SignFile) (*SignDataReply, error) {
	id := uuid.NewRandom()
	log.Lvlf2("%s: signfile %s for %s", id, req.Path, req.Destination)
	if err := s.authorise(req); err != nil {
		log.Lvlf2("%s: refused: %v", id, err)
		return nil, err
	}
	h, _, err := s.hashTypes(req.HashType, "")
	if err != nil {
		return nil, err
	}
	return s.sign(id, &signer.Request{
		Destination: req.Destination,
		Items:       []*canon.Item{canon.NewFile(req.Path)},
		HashType:    h,
	})
}

func (s *Service) sign(id uuid.UUID, req *signer.Request) (*SignDataReply, error) {
	res, err := s.signer().SignData(req)
	if err != nil {
		log.Lvlf2("%s: failed: %v", id, err)
		return nil, err
	}
	log.Lvlf2("%s: signature is %s", id, res.Status)
	reply := &SignDataReply{
		Hash:          res.Hash.Bytes(),
		Signature:     res.Signature,
		Status:        res.Status.String(),
		BlockHeight:   res.BlockHeight,
		Descriptors:   res.Descriptors,
		SignatureData: res.SignatureData,
		Structure:     res.Structure,
		Keys:          res.Keys,
	}
	for _, l := range res.LeafHashes {
		reply.LeafHashes = append(reply.LeafHashes, l.Bytes())
	}
	if !res.MMRRoot.IsZero() {
		reply.MMRRoot = res.MMRRoot.Bytes()
	}
	if res.Identity != nil {
		reply.IdentityID = res.Identity.ID.Bytes()
	}
	if res.Address != nil {
		reply.Address = res.Address.String()
	}
	return reply, nil
}

// DecryptData decrypts a descriptor and resolves the reference it holds if
// asked to. Without authorisation only the keys given in the request are
// used, and references are not resolved.
func (s *Service) DecryptData(req *DecryptData) (*DecryptDataReply, error) {
	id := uuid.NewRandom()
	log.Lvlf2("%s: decryptdata", id)
	vk, err := scalar(req.ViewingKey)
	if err != nil {
		return nil, err
	}
	r := &decrypt.Resolver{SystemID: s.config().SystemID()}
	if err := s.authorise(req); err == nil {
		r.Keys, r.Refs = s.wallet, s.wallet
	} else if vk == nil && len(req.SSK) == 0 {
		log.Lvlf2("%s: refused: %v", id, err)
		return nil, err
	}
	res, err := r.Decrypt(&decrypt.Request{
		Descriptor: req.Descriptor,
		ViewingKey: vk,
		SSK:        req.SSK,
		Retrieve:   req.Retrieve,
	})
	if err != nil {
		log.Lvlf2("%s: failed: %v", id, err)
		return nil, err
	}
	return &DecryptDataReply{
		Descriptor: res.Descriptor,
		Decrypted:  res.Decrypted,
		Reference:  res.Reference,
		Retrieved:  res.Retrieved,
	}, nil
}

// VerifySignature checks a signature over the items of the request.
func (s *Service) VerifySignature(req *VerifySignature) (*VerifySignatureReply, error) {
	id := uuid.NewRandom()
	log.Lvlf2("%s: verifysignature for %s", id, req.Destination)
	h, m, err := s.hashTypes(req.HashType, req.MMRHashType)
	if err != nil {
		return nil, err
	}
	res, err := s.signer().VerifyData(&signer.Request{
		Destination: req.Destination,
		Items:       req.Items,
		HashType:    h,
		MMRHashType: m,
		CreateMMR:   req.CreateMMR,
		Salts:       req.Salts,
		BlockHeight: req.BlockHeight,
	}, req.Signature)
	if err != nil {
		log.Lvlf2("%s: failed: %v", id, err)
		return nil, err
	}
	return &VerifySignatureReply{
		Hash:        res.Hash.Bytes(),
		Status:      res.Status.String(),
		BlockHeight: res.BlockHeight,
	}, nil
}

// newService receives the context that holds information about the node it's
// running on. The wallet is stored in a bucket of the database of the node.
func newService(c *onet.Context) (onet.Service, error) {
	db, bucket := c.GetAdditionalBucket([]byte("attest-wallet"))
	wallet, err := store.New(db, bucket)
	if err != nil {
		return nil, xerrors.Errorf("opening wallet: %v", err)
	}
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		wallet:           wallet,
		conf:             config.Default(""),
	}
	if err := s.RegisterHandlers(s.SignData, s.SignHash, s.SignMessage, s.SignFile,
		s.DecryptData, s.VerifySignature); err != nil {
		return nil, xerrors.New("couldn't register messages")
	}
	log.Lvl3(s.ServerIdentity(), "started with system", s.conf.SystemID())
	return s, nil
}
