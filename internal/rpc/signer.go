package rpc

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 钱包签名认证
//
// 游戏网关用链上钱包地址识别车主，请求头携带
// timestamp+op 的 secp256k1 签名做身份验证
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSignerFromHex 从十六进制私钥创建签名器
func NewSignerFromHex(privHex string) (*Signer, error) {
	privHex = strings.TrimPrefix(strings.TrimSpace(privHex), "0x")
	if privHex == "" {
		return nil, fmt.Errorf("私钥为空")
	}
	key, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address 返回钱包地址
func (s *Signer) Address() common.Address {
	return s.address
}

// Headers 构建单次请求的认证头
//
// 消息格式与网关约定：keccak256("gorace-auth:<timestamp>:<op>")
func (s *Signer) Headers(op string) (map[string]string, error) {
	ts := time.Now().Unix()
	msg := fmt.Sprintf("gorace-auth:%d:%s", ts, op)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(msg)), s.key)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	return map[string]string{
		"X-Race-Address":   s.address.Hex(),
		"X-Race-Timestamp": strconv.FormatInt(ts, 10),
		"X-Race-Signature": "0x" + hex.EncodeToString(sig),
	}, nil
}
