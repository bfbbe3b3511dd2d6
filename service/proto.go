package service

import (
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/signer"
	"go.dedis.ch/onet/v3/network"
)

func init() {
	network.RegisterMessages(
		&SignData{}, &SignDataReply{},
		&SignHash{}, &SignMessage{}, &SignFile{},
		&DecryptData{}, &DecryptDataReply{},
		&VerifySignature{}, &VerifySignatureReply{},
	)
}

// PROTOSTART
// package attest;
//
// option java_package = "ch.epfl.dedis.lib.proto";
// option java_outer_classname = "AttestProto";

// ***
// These are the messages used in the API-calls
// ***

// Authorization is the signature of a client over a request. Requests
// using the keys of the node wallet are refused unless the client is in
// the configured list.
type Authorization struct {
	// Client is the marshalled public key of the client.
	Client    []byte
	Timestamp int64
	Signature []byte
}

// SignData is the general signing request. Hash types are given by name,
// empty names select the defaults of the node.
type SignData struct {
	Destination    string
	Items          []*canon.Item
	HashType       string
	MMRHashType    string
	CreateMMR      bool
	Salts          [][]byte
	Salted         bool
	PriorSignature []byte
	BlockHeight    uint32
	// EncryptTo is a marshalled viewing key.
	EncryptTo  []byte
	ReturnKeys bool
	Auth       *Authorization
}

// SignDataReply is returned by all signing requests.
type SignDataReply struct {
	Hash          []byte
	LeafHashes    [][]byte
	MMRRoot       []byte
	Signature     []byte
	Status        string
	IdentityID    []byte
	Address       string
	BlockHeight   uint32
	Descriptors   []*canon.Descriptor
	SignatureData *canon.Descriptor
	Structure     signer.Structure
	Keys          [][]byte
}

// SignHash signs a precomputed 32 byte hash.
type SignHash struct {
	Destination string
	Hash        []byte
	Auth        *Authorization
}

// SignMessage signs a text message.
type SignMessage struct {
	Destination string
	Message     string
	HashType    string
	Auth        *Authorization
}

// SignFile signs a file of the node, if the node allows it.
type SignFile struct {
	Destination string
	Path        string
	HashType    string
	Auth        *Authorization
}

// DecryptData decrypts a descriptor with the given keys. Only
// authorised requests may use the keys and references of the node.
type DecryptData struct {
	Descriptor *canon.Descriptor
	ViewingKey []byte
	SSK        []byte
	Retrieve   bool
	Auth       *Authorization
}

// DecryptDataReply holds the plain descriptor and the retrieved objects.
type DecryptDataReply struct {
	Descriptor *canon.Descriptor
	Decrypted  bool
	Reference  *canon.Reference
	Retrieved  []*canon.Descriptor
}

// VerifySignature checks a signature over the given items.
type VerifySignature struct {
	Destination string
	Items       []*canon.Item
	HashType    string
	MMRHashType string
	CreateMMR   bool
	Salts       [][]byte
	BlockHeight uint32
	Signature   []byte
}

// VerifySignatureReply returns the root and the state of the signature.
type VerifySignatureReply struct {
	Hash        []byte
	Status      string
	BlockHeight uint32
}
