/*
Package attest implements identity threshold signatures over data attested
through a Merkle Mountain Range.

A signing request takes one or more data items, brings each of them into a
canonical form (optionally salted), hashes them into leaves and combines the
leaves into one root. The root is then signed either by a single address or by
an identity that is controlled by a set of primary addresses and a threshold
of required signatures. Several holders of an identity can add their shares to
the same aggregate, one after another, until the threshold is met.

Data objects and signature metadata can be encrypted to a viewing key. Every
leaf gets its own sub-key, so that one leaf can be disclosed without revealing
its siblings.

The sub-packages are:
  - digest: the hash functions used for documents and for the MMR
  - mmr: the Merkle Mountain Range
  - canon: data items and their canonical descriptors
  - envelope: encryption of descriptors to viewing keys
  - identity: identities, addresses and the threshold signature aggregate
  - signer: the signing and verification entry points
  - decrypt: decryption and resolution of cross-chain references
  - store: a bbolt backed wallet and reference store
  - service: the onet service and its client
*/
package attest
