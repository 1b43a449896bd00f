// Package keys derives the stable addresses under which campaign state is
// stored. Derivation is a pure function of (namespace, seed, subject): the
// same inputs always produce the same key, and distinct inputs never collide,
// so no registry of issued addresses is needed.
package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Namespace tags. These mirror the on-chain account seeds so keys derived
// here match the addresses a chain integration would observe.
const (
	nsCampaign    = "CampaignConfig"
	nsVault       = "escrow"
	nsContributor = "Contributor"
)

// DefaultProgramID anchors derivation when no program identifier is
// configured explicitly.
var DefaultProgramID = solana.MustPublicKeyFromBase58("3qwWMVMuLXq6TXA7QFEXPL8Ajwua6nZ8a6odXqE8431E")

// Deriver computes program-derived addresses under a fixed program
// identifier. It holds no mutable state and is safe for concurrent use.
type Deriver struct {
	programID solana.PublicKey
}

func NewDeriver(programID solana.PublicKey) *Deriver {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &Deriver{programID: programID}
}

// Campaign derives the storage key for a campaign config from its seed.
func (d *Deriver) Campaign(seed uint64) (string, error) {
	return d.derive(nsCampaign, seedBytes(seed))
}

// Vault derives the storage key for the escrow vault tied to a campaign.
func (d *Deriver) Vault(seed uint64) (string, error) {
	return d.derive(nsVault, seedBytes(seed))
}

// Contributor derives the storage key for a (campaign, contributor) pair.
// The campaign seed is part of the derivation so the same wallet joining two
// campaigns yields two distinct records.
func (d *Deriver) Contributor(seed uint64, identity solana.PublicKey) (string, error) {
	return d.derive(nsContributor, seedBytes(seed), identity.Bytes())
}

func (d *Deriver) derive(namespace string, parts ...[]byte) (string, error) {
	seeds := make([][]byte, 0, len(parts)+1)
	seeds = append(seeds, []byte(namespace))
	seeds = append(seeds, parts...)

	addr, _, err := solana.FindProgramAddress(seeds, d.programID)
	if err != nil {
		return "", fmt.Errorf("failed to derive %s address: %w", namespace, err)
	}
	return base58.Encode(addr.Bytes()), nil
}

func seedBytes(seed uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	return b[:]
}
