package network

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/dcrec/secp256k1/v3/ecdsa"

	"github.com/darkpool-labs/relayer/gossip"
	"github.com/darkpool-labs/relayer/rerrors"
)

// maxFrameSize bounds a single decoded wire frame -- a length prefix larger
// than this is treated as a protocol error rather than an allocation
// request, the same defensive cap the teacher's lnwire reader applies to
// message length prefixes.
const maxFrameSize = 4 << 20

func init() {
	gob.Register(gossip.HeartbeatMessage{})
	gob.Register(gossip.OrderReceived{})
	gob.Register(gossip.OrderProofUpdated{})
	gob.Register(gossip.OrderWitnessRequest{})
	gob.Register(gossip.OrderWitnessResponse{})
	gob.Register(gossip.NullifyOrders{})
	gob.Register(gossip.ClusterJoin{})
	gob.Register(gossip.Replicate{})
}

// envelope is the signed wire wrapper around one gossip message: Payload is
// the gob encoding of the concrete gossip message, Signature commits to it
// under the sending cluster's key. Cluster-scoped request/response signing
// per spec.md §4.5.
type envelope struct {
	Payload   []byte
	Signature []byte
}

// WriteFrame signs msg under key and writes it to w as a length-prefixed
// gob-encoded envelope.
func WriteFrame(w io.Writer, msg interface{}, key *secp256k1.PrivateKey) error {
	var payloadBuf bytes.Buffer
	if err := gob.NewEncoder(&payloadBuf).Encode(msg); err != nil {
		return rerrors.Serialization(fmt.Errorf("encoding gossip message %T: %w", msg, err))
	}
	payload := payloadBuf.Bytes()

	digest := chainhash.HashB(payload)
	sig := ecdsa.Sign(key, digest)

	var frameBuf bytes.Buffer
	if err := gob.NewEncoder(&frameBuf).Encode(envelope{Payload: payload, Signature: sig.Serialize()}); err != nil {
		return rerrors.Serialization(fmt.Errorf("encoding envelope: %w", err))
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(frameBuf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return rerrors.Gossip(fmt.Errorf("writing frame length: %w", err), false)
	}
	if _, err := w.Write(frameBuf.Bytes()); err != nil {
		return rerrors.Gossip(fmt.Errorf("writing frame body: %w", err), false)
	}
	return nil
}

// ReadFrame reads one length-prefixed envelope from r, verifies its
// signature under pub, and gob-decodes its payload back into a concrete
// gossip message.
func ReadFrame(r io.Reader, pub *secp256k1.PublicKey) (interface{}, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, rerrors.Gossip(fmt.Errorf("reading frame length: %w", err), false)
	}
	length := binary.BigEndian.Uint32(lenPrefix[:])
	if length > maxFrameSize {
		return nil, rerrors.Gossip(fmt.Errorf("frame length %d exceeds max %d", length, maxFrameSize), false)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, rerrors.Gossip(fmt.Errorf("reading frame body: %w", err), false)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, rerrors.Serialization(fmt.Errorf("decoding envelope: %w", err))
	}

	if pub != nil {
		sig, err := ecdsa.ParseDERSignature(env.Signature)
		if err != nil {
			return nil, rerrors.Gossip(fmt.Errorf("parsing frame signature: %w", err), true)
		}
		if !sig.Verify(chainhash.HashB(env.Payload), pub) {
			return nil, rerrors.Gossip(fmt.Errorf("frame signature does not verify"), true)
		}
	}

	var msg interface{}
	if err := gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(&msg); err != nil {
		return nil, rerrors.Serialization(fmt.Errorf("decoding gossip message: %w", err))
	}
	return msg, nil
}
