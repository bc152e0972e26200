package chain

import (
	"math/big"
	"strings"
	"testing"

	"tapcoin/internal/config"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodSignature(t *testing.T) {
	name, withAddress, err := parseMethodSignature("withdraw(address,uint256)")
	require.NoError(t, err)
	assert.Equal(t, "withdraw", name)
	assert.True(t, withAddress)

	name, withAddress, err = parseMethodSignature("payout(uint256)")
	require.NoError(t, err)
	assert.Equal(t, "payout", name)
	assert.False(t, withAddress)

	for _, signature := range []string{
		"",
		"withdraw",
		"(uint256)",
		"withdraw(uint256",
		"withdraw(string)",
		"withdraw(address,uint256,bool)",
	} {
		_, _, err := parseMethodSignature(signature)
		assert.Error(t, err, "signature %q", signature)
	}
}

func TestScaleAmount(t *testing.T) {
	scaled, err := scaleAmount(1, 18)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", scaled.String())

	scaled, err = scaleAmount(0.5, 18)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", scaled.String())

	scaled, err = scaleAmount(60, 18)
	require.NoError(t, err)
	assert.Equal(t, "60000000000000000000", scaled.String())

	scaled, err = scaleAmount(12.5, 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1250), scaled)

	_, err = scaleAmount(0, 18)
	assert.Error(t, err)
	_, err = scaleAmount(-5, 18)
	assert.Error(t, err)
}

func TestMethodABIPacks(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(methodABI("withdraw", true)))
	require.NoError(t, err)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data, err := parsed.Pack("withdraw", to, big.NewInt(1000))
	require.NoError(t, err)
	// 4-byte selector plus two 32-byte words
	assert.Len(t, data, 68)

	parsed, err = abi.JSON(strings.NewReader(methodABI("payout", false)))
	require.NoError(t, err)
	data, err = parsed.Pack("payout", big.NewInt(1000))
	require.NoError(t, err)
	assert.Len(t, data, 36)
}

func TestConfigured(t *testing.T) {
	full := config.ChainConfig{
		RPCURL:          "http://localhost:8545",
		PrivateKey:      "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
		ContractAddress: "0x2222222222222222222222222222222222222222",
	}
	assert.NoError(t, NewClient(full, nil).Configured())

	missing := full
	missing.RPCURL = ""
	assert.ErrorContains(t, NewClient(missing, nil).Configured(), "RPC URL")

	missing = full
	missing.PrivateKey = ""
	assert.ErrorContains(t, NewClient(missing, nil).Configured(), "withdrawer key")

	missing = full
	missing.ContractAddress = ""
	assert.ErrorContains(t, NewClient(missing, nil).Configured(), "contract address")
}
