package wrapper

import "github.com/cuemby/collstore/internal/seal"

func sealEnvelope(key, plaintext []byte) ([]byte, error) { return seal.Seal(key, plaintext) }

func openEnvelope(key, envelope []byte) ([]byte, error) { return seal.Open(key, envelope) }
