package common

import (
	"encoding/json"
	"fmt"

	ethereumCommon "github.com/ethereum/go-ethereum/common"
)

// Hash is a custom type based on Ethereum's common.Hash
type Hash ethereumCommon.Hash

// Address is a custom type based on Ethereum's common.Address
type Address ethereumCommon.Address

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte {
	return ethereumCommon.Hash(h).Bytes()
}

// String returns the string representation of the hash.
func (h Hash) String() string {
	return ethereumCommon.Hash(h).String()
}

func (h Hash) String_short() string {
	return fmt.Sprintf("%s..%s", h.Hex()[2:6], h.Hex()[62:66])
}

// Hex returns the hexadecimal string representation of the hash.
func (h Hash) Hex() string {
	return ethereumCommon.Hash(h).Hex()
}

// Eth converts to the go-ethereum type.
func (h Hash) Eth() ethereumCommon.Hash {
	return ethereumCommon.Hash(h)
}

// BytesToHash converts a byte slice to a Hash.
func BytesToHash(b []byte) Hash {
	return Hash(ethereumCommon.BytesToHash(b))
}

func Bytes2Hex(d []byte) string {
	return "0x" + ethereumCommon.Bytes2Hex(d)
}

func FromHex(b string) []byte {
	return ethereumCommon.FromHex(b)
}

// HexToHash converts a hexadecimal string to a Hash.
func HexToHash(s string) Hash {
	return Hash(ethereumCommon.HexToHash(s))
}

// Skips "0x" and prints the first and last 4 characters
func Str(hash Hash) string {
	return hash.String_short()
}

// MarshalJSON custom marshaler to convert Hash to hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

// UnmarshalJSON custom unmarshaler to handle hex strings for Hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	*h = HexToHash(hexStr)
	return nil
}

// Address methods

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte {
	return ethereumCommon.Address(a).Bytes()
}

// String returns the string representation of the address.
func (a Address) String() string {
	return ethereumCommon.Address(a).String()
}

// Hex returns the checksummed hexadecimal string representation of the address.
func (a Address) Hex() string {
	return ethereumCommon.Address(a).Hex()
}

// Eth converts to the go-ethereum type.
func (a Address) Eth() ethereumCommon.Address {
	return ethereumCommon.Address(a)
}

// HexToAddress converts a hexadecimal string to an Address.
func HexToAddress(s string) Address {
	return Address(ethereumCommon.HexToAddress(s))
}

func IsHexAddress(s string) bool {
	return ethereumCommon.IsHexAddress(s)
}

// BytesToAddress converts a byte slice to an Address.
func BytesToAddress(b []byte) Address {
	return Address(ethereumCommon.BytesToAddress(b))
}

// MarshalJSON custom marshaler to convert Address to hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

// UnmarshalJSON custom unmarshaler to handle hex strings for Address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	if !ethereumCommon.IsHexAddress(hexStr) {
		return fmt.Errorf("invalid address %q", hexStr)
	}
	*a = HexToAddress(hexStr)
	return nil
}

// MarshalText lets Address be used as a JSON object key.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	s := string(text)
	if !ethereumCommon.IsHexAddress(s) {
		return fmt.Errorf("invalid address %q", s)
	}
	*a = HexToAddress(s)
	return nil
}

// DevAccount returns a standard Hardhat/Anvil test account by index
// These are derived from the mnemonic: "test test test test test test test test test test test junk"
// Returns the address and private key (without 0x prefix) for the account at index % 10
func DevAccount(index int) (Address, string) {
	addresses := []Address{
		HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), // Account #0
		HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), // Account #1
		HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), // Account #2
		HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"), // Account #3
		HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"), // Account #4
		HexToAddress("0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc"), // Account #5
		HexToAddress("0x976EA74026E726554dB657fA54763abd0C3a0aa9"), // Account #6
		HexToAddress("0x14dC79964da2C08b23698B3D3cc7Ca32193d9955"), // Account #7
		HexToAddress("0x23618e81E3f5cdF7f54C3d65f7FBc0aBf5B21E8f"), // Account #8
		HexToAddress("0xa0Ee7A142d267C1f36714E4a8F75612F20a79720"), // Account #9
	}

	privateKeys := []string{
		"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", // Account #0
		"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", // Account #1
		"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a", // Account #2
		"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6", // Account #3
		"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a", // Account #4
		"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba", // Account #5
		"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e", // Account #6
		"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356", // Account #7
		"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97", // Account #8
		"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6", // Account #9
	}
	return addresses[index%10], privateKeys[index%10]
}
