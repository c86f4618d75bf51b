package ethereum

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// certificateABI is the subset of the certificate contract the service calls.
const certificateABI = `[
  {"type":"function","name":"mintNFT","stateMutability":"nonpayable",
   "inputs":[{"name":"recipient","type":"address"},{"name":"tokenURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isInstitution","stateMutability":"view",
   "inputs":[{"name":"institution","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"tokenId","type":"uint256","indexed":true}]}
]`

const (
	methodMint          = "mintNFT"
	methodIsInstitution = "isInstitution"
)

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func parseCertificateABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(certificateABI))
}

type mintArgs struct {
	Recipient common.Address
	TokenURI  string
}

func decodeMint(contract abi.ABI, data []byte) (mintArgs, error) {
	if len(data) < 4 {
		return mintArgs{}, fmt.Errorf("call data too short")
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return mintArgs{}, err
	}
	if method.Name != methodMint {
		return mintArgs{}, fmt.Errorf("unexpected method %s", method.Name)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return mintArgs{}, err
	}
	if len(values) != 2 {
		return mintArgs{}, fmt.Errorf("unexpected argument count %d", len(values))
	}
	recipient, ok := values[0].(common.Address)
	if !ok {
		return mintArgs{}, fmt.Errorf("recipient is %T", values[0])
	}
	uri, ok := values[1].(string)
	if !ok {
		return mintArgs{}, fmt.Errorf("token uri is %T", values[1])
	}
	return mintArgs{Recipient: recipient, TokenURI: uri}, nil
}
