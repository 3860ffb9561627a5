package chain

import (
	"fmt"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	gogoproto "github.com/cosmos/gogoproto/proto"
)

// Signer is the subset of internal/signer.State the tx builder needs.
// Declared locally rather than imported to keep this package from
// depending on signer's package (producers only need BuildExecuteTxBody,
// which needs no signer at all; only the broadcast worker needs the
// signing half, and it already holds a concrete *signer.State).
type Signer interface {
	Address() sdk.AccAddress
	PubKey() cryptotypes.PubKey
	PrivKey() cryptotypes.PrivKey
	ChainID() string
	AccountNumber() uint64
	Sequence() uint64
	Fee(gasLimit uint64) sdk.Coins
}

// BuildExecuteTxBody marshals a single-message TxBody wrapping a
// MsgExecuteContract(sender, contract, payload), with no funds attached,
// empty memo, and timeout height 0 (no timeout). This is the unsigned
// body producers (alarms, pricefeed) hand to the broadcast worker by way
// of txpkg.Package; the worker attaches AuthInfo and a signature itself,
// once it knows the final gas limit.
//
// Every message here is a gogoproto type (cosmos-sdk and wasmd are both
// generated against github.com/cosmos/gogoproto, not
// google.golang.org/protobuf), so packing and marshaling go through the
// gogoproto codec and codectypes.Any throughout, matching the SDK's own
// TxConfig encoder.
func BuildExecuteTxBody(sender sdk.AccAddress, contract string, payload []byte) ([]byte, error) {
	msg := &wasmtypes.MsgExecuteContract{
		Sender:   sender.String(),
		Contract: contract,
		Msg:      payload,
	}

	anyMsg, err := codectypes.NewAnyWithValue(msg)
	if err != nil {
		return nil, fmt.Errorf("chain: wrap MsgExecuteContract: %w", err)
	}

	body := &sdktx.TxBody{Messages: []*codectypes.Any{anyMsg}}
	raw, err := gogoproto.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal TxBody: %w", err)
	}
	return raw, nil
}

// SignTx builds AuthInfo for gasLimit/fee against the signer's current
// sequence, produces a SIGN_MODE_DIRECT signature over (bodyBytes,
// authInfoBytes, chain id, account number), and returns a marshaled
// TxRaw ready for broadcast. Called once per broadcast attempt, since a
// sequence refetch between attempts changes AuthInfo.
func SignTx(s Signer, bodyBytes []byte, gasLimit uint64) ([]byte, error) {
	anyPub, err := codectypes.NewAnyWithValue(s.PubKey())
	if err != nil {
		return nil, fmt.Errorf("chain: wrap pubkey: %w", err)
	}

	authInfo := &sdktx.AuthInfo{
		SignerInfos: []*sdktx.SignerInfo{{
			PublicKey: anyPub,
			ModeInfo: &sdktx.ModeInfo{
				Sum: &sdktx.ModeInfo_Single_{
					Single: &sdktx.ModeInfo_Single{Mode: signingtypes.SignMode_SIGN_MODE_DIRECT},
				},
			},
			Sequence: s.Sequence(),
		}},
		Fee: &sdktx.Fee{
			Amount:   s.Fee(gasLimit),
			GasLimit: gasLimit,
		},
	}

	authInfoBytes, err := gogoproto.Marshal(authInfo)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal AuthInfo: %w", err)
	}

	signDoc := &sdktx.SignDoc{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		ChainId:       s.ChainID(),
		AccountNumber: s.AccountNumber(),
	}
	signDocBytes, err := gogoproto.Marshal(signDoc)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal SignDoc: %w", err)
	}

	sig, err := s.PrivKey().Sign(signDocBytes)
	if err != nil {
		return nil, fmt.Errorf("chain: sign tx: %w", err)
	}

	raw := &sdktx.TxRaw{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		Signatures:    [][]byte{sig},
	}
	txBytes, err := gogoproto.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal TxRaw: %w", err)
	}
	return txBytes, nil
}
