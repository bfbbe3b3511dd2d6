package service

import (
	"go.dedis.ch/attest"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
)

// Client is the client to make requests to the attest service.
type Client struct {
	*onet.Client
	keys *key.Pair
}

// NewClient makes a new client. Requests are signed with the key pair, which
// must be authorised on the node to use its wallet. A client without a key
// pair can only verify signatures and decrypt with its own keys.
func NewClient(kp *key.Pair) *Client {
	return &Client{Client: onet.NewClient(attest.Suite, ServiceName), keys: kp}
}

func (c *Client) send(si *network.ServerIdentity, req Authenticated, reply interface{}) error {
	if c.keys != nil {
		if err := SignRequest(req, c.keys); err != nil {
			return err
		}
	}
	return c.SendProtobuf(si, req, reply)
}

// SignData sends a signing request to the node.
func (c *Client) SignData(si *network.ServerIdentity, req *SignData) (*SignDataReply, error) {
	reply := &SignDataReply{}
	if err := c.send(si, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// SignHash asks the node to sign a precomputed hash.
func (c *Client) SignHash(si *network.ServerIdentity, dest string, hash []byte) (*SignDataReply, error) {
	reply := &SignDataReply{}
	if err := c.send(si, &SignHash{Destination: dest, Hash: hash}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// SignMessage asks the node to sign a text message.
func (c *Client) SignMessage(si *network.ServerIdentity, dest, msg, hashType string) (*SignDataReply, error) {
	reply := &SignDataReply{}
	err := c.send(si, &SignMessage{Destination: dest, Message: msg, HashType: hashType}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// SignFile asks the node to sign one of its files.
func (c *Client) SignFile(si *network.ServerIdentity, dest, path, hashType string) (*SignDataReply, error) {
	reply := &SignDataReply{}
	err := c.send(si, &SignFile{Destination: dest, Path: path, HashType: hashType}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// DecryptData asks the node to decrypt a descriptor.
func (c *Client) DecryptData(si *network.ServerIdentity, req *DecryptData) (*DecryptDataReply, error) {
	reply := &DecryptDataReply{}
	if err := c.send(si, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// VerifySignature asks the node to verify a signature.
func (c *Client) VerifySignature(si *network.ServerIdentity, req *VerifySignature) (*VerifySignatureReply, error) {
	reply := &VerifySignatureReply{}
	if err := c.SendProtobuf(si, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
