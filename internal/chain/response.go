package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	gogoproto "github.com/cosmos/gogoproto/proto"
)

// On-chain tx response codes the broadcast worker and application-defined
// workers classify on, per spec.md §4.2/§4.3.
const (
	CodeOK                    uint32 = 0
	CodeOutOfGas              uint32 = 11
	CodeSignatureVerification uint32 = 32
)

// DecodeExecuteResponse extracts the application's JSON payload out of a
// successful tx response's Data field. Data is hex-uppercase bytes of a
// cosmos-sdk TxMsgData whose first msg_responses entry is an Any wrapping
// a MsgExecuteContractResponse; that message's Data field is the
// application payload, itself JSON.
func DecodeExecuteResponse(hexData string) (json.RawMessage, error) {
	raw, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, fmt.Errorf("chain: decode tx response hex: %w", err)
	}

	var msgData sdktx.TxMsgData
	if err := gogoproto.Unmarshal(raw, &msgData); err != nil {
		return nil, fmt.Errorf("chain: unmarshal TxMsgData: %w", err)
	}
	if len(msgData.MsgResponses) == 0 {
		return nil, fmt.Errorf("chain: tx response carries no msg responses")
	}

	var execResp wasmtypes.MsgExecuteContractResponse
	if err := gogoproto.Unmarshal(msgData.MsgResponses[0].Value, &execResp); err != nil {
		return nil, fmt.Errorf("chain: unmarshal MsgExecuteContractResponse: %w", err)
	}

	return json.RawMessage(execResp.Data), nil
}
