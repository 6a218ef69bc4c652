package crypto

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	// 32 bytes
	if got := len(keyHex(signer)); got != 64 {
		t.Errorf("private key hex length = %d, want 64", got)
	}
}

func keyHex(s *Signer) string {
	return hex.EncodeToString(eth_crypto.FromECDSA(s.privateKey))
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := keyHex(signer1)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bare hex", privHex, false},
		{"0x prefix", "0x" + privHex, false},
		{"surrounding whitespace", "  " + privHex + "\n", false},
		{"too short", "abcd", true},
		{"not hex", "zz" + privHex[2:], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromPrivateKeyHex(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to load key: %v", err)
			}
			if s.Address() != signer1.Address() {
				t.Errorf("address = %s, want %s", s.Address().Hex(), signer1.Address().Hex())
			}
		})
	}
}

func TestSignTx(t *testing.T) {
	signer, _ := GenerateKey()
	chainID := big.NewInt(25)
	to := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    7,
		To:       &to,
		Value:    big.NewInt(4),
		Gas:      21000,
		GasPrice: big.NewInt(5_000_000_000),
	})

	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.ChainId().Cmp(chainID) != 0 {
		t.Errorf("chain id = %s, want %s", signed.ChainId(), chainID)
	}
	from, err := TxSender(signed)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if from != signer.Address() {
		t.Errorf("sender = %s, want %s", from.Hex(), signer.Address().Hex())
	}

	if _, err := signer.SignTx(tx, nil); err != ErrNoChainID {
		t.Errorf("nil chain id err = %v, want ErrNoChainID", err)
	}
}
