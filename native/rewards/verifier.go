package rewards

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	repoCrypto "rewardledger/crypto"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ClaimDomainV1 defines the domain tag bound into every claim digest.
const ClaimDomainV1 = "REWARDLEDGER_CLAIM_V1"

// Verifier validates a claim authorization against the designated authority.
// Implementations must be stateless and safe for concurrent use; the specific
// signature scheme is an implementation choice injected at construction.
type Verifier interface {
	Verify(affiliate [20]byte, amount *big.Int, epoch uint64, sig []byte) ([20]byte, error)
}

// RecoveredSignerVerifier verifies 65-byte secp256k1 recovery signatures over
// the canonical claim digest and compares the recovered signer against the
// configured authority address.
type RecoveredSignerVerifier struct {
	ledgerID  string
	authority [20]byte
}

// NewRecoveredSignerVerifier constructs a verifier bound to this ledger
// instance. The ledger identity keeps a signature issued for one deployment
// from being replayed on another.
func NewRecoveredSignerVerifier(ledgerID string, authority [20]byte) *RecoveredSignerVerifier {
	return &RecoveredSignerVerifier{ledgerID: strings.TrimSpace(ledgerID), authority: authority}
}

// ClaimDigest reconstructs the canonical message digest signed by the
// authority for a pull-path claim.
func ClaimDigest(ledgerID string, affiliate [20]byte, amount *big.Int, epoch uint64) []byte {
	amountStr := "0"
	if amount != nil {
		amountStr = amount.String()
	}
	payload := fmt.Sprintf("%s|ledger=%s|affiliate=%s|amount=%s|epoch=%d",
		ClaimDomainV1,
		strings.TrimSpace(ledgerID),
		hex.EncodeToString(affiliate[:]),
		amountStr,
		epoch,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// Verify implements the Verifier interface.
func (v *RecoveredSignerVerifier) Verify(affiliate [20]byte, amount *big.Int, epoch uint64, sig []byte) ([20]byte, error) {
	var recovered [20]byte
	if v == nil {
		return recovered, errNilVerifier
	}
	if len(sig) != 65 {
		return recovered, fmt.Errorf("%w: signature must be 65 bytes", ErrInvalidSignature)
	}
	digest := ClaimDigest(v.ledgerID, affiliate, amount, epoch)
	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return recovered, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	copy(recovered[:], ethcrypto.PubkeyToAddress(*pubKey).Bytes())
	if recovered != v.authority {
		return recovered, fmt.Errorf("%w: signer is not the authority", ErrInvalidSignature)
	}
	return recovered, nil
}

// SignClaim produces a claim authorization signature with the supplied key.
// Production signatures come from the external signer service; this helper
// exists for operator tooling and tests.
func SignClaim(key *repoCrypto.PrivateKey, ledgerID string, affiliate [20]byte, amount *big.Int, epoch uint64) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("rewards: signing key required")
	}
	digest := ClaimDigest(ledgerID, affiliate, amount, epoch)
	return ethcrypto.Sign(digest, key.PrivateKey)
}
