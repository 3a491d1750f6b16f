package ethereum

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// SaleNFTABI is the ABI of the presale NFT contract: an ERC-721 collection
// with an owner-started, time-boxed presale for whitelisted addresses
// followed by a public mint.
const SaleNFTABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"baseURI","type":"string"},
    {"name":"whitelistContract","type":"address"}]},
  {"type":"function","name":"presaleStarted","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"presaleEnded","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenIds","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"maxTokenIds","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"_price","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"_paused","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"startPresale","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"presaleMint","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"mint","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"setPaused","stateMutability":"nonpayable","inputs":[
    {"name":"val","type":"bool"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true}]}
]`

var (
	saleABIOnce sync.Once
	saleABI     abi.ABI
	saleABIErr  error
)

// ParsedSaleABI returns SaleNFTABI parsed once.
func ParsedSaleABI() (abi.ABI, error) {
	saleABIOnce.Do(func() {
		saleABI, saleABIErr = abi.JSON(strings.NewReader(SaleNFTABI))
		if saleABIErr != nil {
			saleABIErr = fmt.Errorf("ethereum: parse sale abi: %w", saleABIErr)
		}
	})
	return saleABI, saleABIErr
}
